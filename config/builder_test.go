package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/safetypole"
)

func TestBuildOptions_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	m, err := safetypole.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.Port() != 8000 {
		t.Errorf("Port() = %d, want 8000", m.Port())
	}
	if m.SampleInterval() != 500*time.Millisecond {
		t.Errorf("SampleInterval() = %v, want 500ms", m.SampleInterval())
	}
	if m.Source().Kind() != safetypole.SourceSimulated {
		t.Errorf("Source().Kind() = %q, want simulated", m.Source().Kind())
	}
}

func TestBuildOptions_AllFields(t *testing.T) {
	cfg := &Config{
		Title:           "Pole 17",
		Port:            9191,
		SampleInterval:  Duration(100 * time.Millisecond),
		AlertPolicy:     "on_transition",
		DeliveryTimeout: Duration(time.Second),
		Source:          SourceConfig{Type: SourceSerial, Port: "/dev/ttyUSB1", BaudRate: 9600, Format: FormatCSV},
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	m, err := safetypole.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", m.Port())
	}
	if m.SampleInterval() != 100*time.Millisecond {
		t.Errorf("SampleInterval() = %v, want 100ms", m.SampleInterval())
	}
	src := m.Source()
	if src.Kind() != safetypole.SourceSerial || src.Target() != "/dev/ttyUSB1" || src.BaudRate() != 9600 {
		t.Errorf("Source() = %s", src)
	}
}

func TestBuildSource_Types(t *testing.T) {
	tests := []struct {
		name     string
		sc       SourceConfig
		wantKind safetypole.SourceKind
		wantStr  string
	}{
		{"empty defaults to wave", SourceConfig{}, safetypole.SourceSimulated, ""},
		{"wave", SourceConfig{Type: SourceSimulated, Mode: ModeWave}, safetypole.SourceSimulated, ""},
		{"walk with seed", SourceConfig{Type: SourceSimulated, Mode: ModeWalk, Seed: 3}, safetypole.SourceRandomWalk, ""},
		{"serial default baud", SourceConfig{Type: SourceSerial, Port: "COM3"}, safetypole.SourceSerial, "serial COM3 @ 115200 baud"},
		{"file stdin", SourceConfig{Type: SourceFile, Path: "-", Format: FormatLabeled}, safetypole.SourceFile, "file stdin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := BuildSource(tt.sc)
			if err != nil {
				t.Fatalf("BuildSource() error = %v", err)
			}
			if src.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", src.Kind(), tt.wantKind)
			}
			if tt.wantStr != "" && src.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", src.String(), tt.wantStr)
			}
		})
	}
}

func TestBuildSource_InvalidPassesThroughSDKValidation(t *testing.T) {
	// BuildSource may be called without Parse; the SDK still rejects bad input
	_, err := BuildSource(SourceConfig{Type: SourceSerial})
	if err == nil || !strings.Contains(err.Error(), "serial port cannot be empty") {
		t.Errorf("BuildSource() error = %v, want empty port error", err)
	}
}

func TestBuildParser(t *testing.T) {
	if buildParser("") != nil || buildParser(FormatAuto) != nil {
		t.Error("auto format should leave the SDK default parser in place")
	}

	f, c, err := buildParser(FormatCSV)("900,200")
	if err != nil || f != 900 || c != 200 {
		t.Errorf("csv parser = (%v, %v, %v)", f, c, err)
	}
	if _, _, err := buildParser(FormatLabeled)("900,200"); err == nil {
		t.Error("labeled parser accepted a csv line")
	}
}
