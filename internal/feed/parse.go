package feed

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser turns one line of a text feed into a measurement pair.
// Parsers return an error wrapping [ErrMalformed] for lines they reject.
type Parser func(line string) (primary, secondary float64, err error)

// ParseLabeled parses "<label>:<int>|<label>:<int>", for example
// "E-Field:900|Current:200". Fields are positional: the first is the
// primary channel and the second the secondary channel.
func ParseLabeled(line string) (float64, float64, error) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q: expected <label>:<int>|<label>:<int>", ErrMalformed, line)
	}

	var vals [2]float64
	for i, part := range parts {
		label, value, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(label) == "" {
			return 0, 0, fmt.Errorf("%w: %q: field %d has no label", ErrMalformed, line, i+1)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: field %d: %v", ErrMalformed, line, i+1, err)
		}
		vals[i] = float64(n)
	}
	return vals[0], vals[1], nil
}

// ParseCSV parses "<int>,<int>", for example "900,200".
func ParseCSV(line string) (float64, float64, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q: expected <int>,<int>", ErrMalformed, line)
	}

	var vals [2]float64
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: field %d: %v", ErrMalformed, line, i+1, err)
		}
		vals[i] = float64(n)
	}
	return vals[0], vals[1], nil
}

// FirstMatch returns a [Parser] that tries each parser in order and returns
// the first successful result.
func FirstMatch(parsers ...Parser) Parser {
	return func(line string) (float64, float64, error) {
		for _, p := range parsers {
			if p == nil {
				continue
			}
			primary, secondary, err := p(line)
			if err == nil {
				return primary, secondary, nil
			}
		}
		return 0, 0, fmt.Errorf("%w: %q: no parser accepted the line", ErrMalformed, line)
	}
}

// ParseAny accepts both the labeled and the CSV format.
var ParseAny = FirstMatch(ParseLabeled, ParseCSV)
