package safetypole

import (
	"errors"
	"testing"
)

func TestBuiltInParsers(t *testing.T) {
	tests := []struct {
		name        string
		parser      LineParser
		line        string
		wantField   float64
		wantCurrent float64
		wantErr     bool
	}{
		{"labeled", LabeledParser, "E-Field:900|Current:200", 900, 200, false},
		{"labeled rejects csv", LabeledParser, "900,200", 0, 0, true},
		{"csv", CSVParser, "1300, 12", 1300, 12, false},
		{"csv rejects labeled", CSVParser, "E-Field:1|Current:2", 0, 0, true},
		{"default labeled", DefaultParser, "E-Field:5|Current:6", 5, 6, false},
		{"default csv", DefaultParser, "7,8", 7, 8, false},
		{"default garbage", DefaultParser, "hello", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, current, err := tt.parser(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if field != tt.wantField || current != tt.wantCurrent {
				t.Errorf("got (%v, %v), want (%v, %v)", field, current, tt.wantField, tt.wantCurrent)
			}
		})
	}
}

func TestFirstMatch_OrderAndNil(t *testing.T) {
	custom := func(line string) (float64, float64, error) {
		if line == "special" {
			return 1, 2, nil
		}
		return 0, 0, errors.New("not special")
	}

	p := FirstMatch(nil, custom, CSVParser)

	if f, c, err := p("special"); err != nil || f != 1 || c != 2 {
		t.Errorf("p(special) = %v, %v, %v", f, c, err)
	}
	if f, c, err := p("3,4"); err != nil || f != 3 || c != 4 {
		t.Errorf("p(3,4) = %v, %v, %v", f, c, err)
	}
	if _, _, err := p("neither"); err == nil {
		t.Error("p(neither) error = nil, want error")
	}
}
