package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"Warning", WARN, false},
		{"error", ERROR, false},
		{"none", SILENT, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN, &buf, false)

	l.Info("Store", "hidden %d", 1)
	l.Warn("Store", "quota at %d%%", 91)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO message written at WARN level: %q", out)
	}
	if !strings.Contains(out, "[WARN] [Store] quota at 91%") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSilentDropsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(SILENT, &buf, false)
	l.Error("Pipeline", "boom")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestColorPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG, &buf, true)
	l.Debug("", "frame %d", 3)
	if !strings.Contains(buf.String(), levelColors[DEBUG]+"[DEBUG]"+resetColor+" frame 3") {
		t.Errorf("missing colored prefix: %q", buf.String())
	}
}

func TestInitReplacesDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	defer func() {
		defaultMu.Lock()
		defaultLogger = prev
		defaultMu.Unlock()
	}()

	Init(INFO, &buf, false)
	Info("Capture", "started")
	if !strings.Contains(buf.String(), "[INFO] [Capture] started") {
		t.Errorf("package logger not replaced: %q", buf.String())
	}
}
