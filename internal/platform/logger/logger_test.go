// internal/platform/logger/logger_test.go
package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"text debug", "DEBUG", "text", false},
		{"default format", "warn", "", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_RedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("connecting", "validator_token", "s3cr3t", "addr", "localhost:9000")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["validator_token"] != "[REDACTED]" {
		t.Errorf("validator_token = %v, want [REDACTED]", fields["validator_token"])
	}
	if fields["addr"] != "localhost:9000" {
		t.Errorf("addr = %v, want localhost:9000", fields["addr"])
	}
}

func TestNop(t *testing.T) {
	l := Nop().With("session_id", "x")
	l.Debug("discarded")
	l.Error("discarded")
}
