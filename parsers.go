package safetypole

import "github.com/jpalmerr/safetypole/internal/feed"

// LineParser turns one line of a device feed into a measurement pair.
//
// LineParser is a pure function: the same line always yields the same
// result. A line the parser does not recognise must return an error; the
// sampler logs it and skips the line.
//
// Parsers run inside a panic recovery boundary. A panicking parser costs
// one sample, logged with a correlation ID, and the feed keeps running.
type LineParser func(line string) (electricField, current float64, err error)

// LabeledParser parses the firmware's labeled format:
//
//	E-Field:<int>|Current:<int>
//
// The labels are not checked; the first value is the electric field and
// the second the current.
var LabeledParser LineParser = LineParser(feed.ParseLabeled)

// CSVParser parses two comma-separated integers:
//
//	<e_field>,<current>
var CSVParser LineParser = LineParser(feed.ParseCSV)

// FirstMatch returns a [LineParser] that tries each parser in order and
// returns the first successful result. Nil parsers are skipped.
//
// Example:
//
//	parser := safetypole.FirstMatch(
//	    myFirmwareParser,
//	    safetypole.CSVParser,
//	)
func FirstMatch(parsers ...LineParser) LineParser {
	inner := make([]feed.Parser, 0, len(parsers))
	for _, p := range parsers {
		if p != nil {
			inner = append(inner, feed.Parser(p))
		}
	}
	return LineParser(feed.FirstMatch(inner...))
}

// DefaultParser accepts both the labeled and the CSV format. It is used
// when a line-based source is created without [WithParser].
var DefaultParser = FirstMatch(LabeledParser, CSVParser)
