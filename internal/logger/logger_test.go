package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"user", "ana", "password", "123456", "jwt_token", "abc", "Email", "ana@x", "dangling"})
	want := []interface{}{"user", "ana", "password", "[REDACTED]", "jwt_token", "[REDACTED]", "Email", "[REDACTED]", "dangling"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "store").Warn("projects blob corrupt", "key", "govtech_projects", "secret", "x")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "store" || fields["key"] != "govtech_projects" {
		t.Errorf("fields = %v", fields)
	}
	if fields["secret"] != "[REDACTED]" {
		t.Errorf("secret not redacted: %v", fields["secret"])
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop()
	l.Info("hello", "k", "v")
	l.Sync()
}
