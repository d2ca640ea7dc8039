package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestInitializeLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
		{"bogus", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if err := Initialize(tt.level); err != nil {
				t.Fatalf("Initialize(%q) error = %v", tt.level, err)
			}
			core := GetLogger().Core()
			if !core.Enabled(tt.enabled) {
				t.Errorf("level %v should be enabled", tt.enabled)
			}
			if core.Enabled(tt.muted) {
				t.Errorf("level %v should be muted", tt.muted)
			}
		})
	}
	SetLogger(nil)
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled from environment")
	}
	SetLogger(nil)
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(zap.NewExample())
	SetLogger(nil)
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
}

func TestDumps(t *testing.T) {
	if got := hexDump([]byte{0xAA, 0x01}); got != "aa01" {
		t.Errorf("hexDump() = %q", got)
	}
	if got := asciiDump([]byte("ok\r\n")); got != "ok.." {
		t.Errorf("asciiDump() = %q", got)
	}

	long := make([]byte, maxDumpBytes+10)
	if got := hexDump(long); !strings.HasSuffix(got, "...") || len(got) != maxDumpBytes*2+3 {
		t.Errorf("hexDump() of long input has length %d", len(got))
	}
	if got := asciiDump(long); len(got) != maxDumpBytes {
		t.Errorf("asciiDump() of long input has length %d", len(got))
	}
}

func TestLogRawBytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogRawBytes("rx", []byte{0x01, 'A'})

	entries := logs.FilterMessage("rx").All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["length"] != int64(2) || fields["hex"] != "0141" || fields["ascii"] != ".A" {
		t.Errorf("fields = %v", fields)
	}
}
