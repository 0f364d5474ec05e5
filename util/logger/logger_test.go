package logger

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		ok       bool
	}{
		{"NONE", None, true},
		{"warn", Warn, true},
		{"Info", Info, true},
		{"DEBUG", Debug, true},
		{"trace", Trace, true},
		{"verbose", Info, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, ok := ParseLogLevel(tt.input)
			if level != tt.expected || ok != tt.ok {
				t.Errorf("ParseLogLevel(%q) = (%v, %v), expected (%v, %v)", tt.input, level, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	previous := GetLogLevel()
	defer SetLogLevel(previous)

	SetLogLevel(Warn)
	if GetLogLevel() != Warn {
		t.Fatalf("GetLogLevel() = %v, expected WARN", GetLogLevel())
	}
	if enabled(Info) {
		t.Errorf("INFO should be disabled at level WARN")
	}
	if !enabled(Warn) {
		t.Errorf("WARN should be enabled at level WARN")
	}

	if Trace.String() != "TRACE" {
		t.Errorf("Trace.String() = %s", Trace.String())
	}
}
