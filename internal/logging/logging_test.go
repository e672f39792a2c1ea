package logging

import "testing"

func TestLevelStringRoundTrip(t *testing.T) {
	cases := map[Level]string{
		LevelNone:  "none",
		LevelError: "error",
		LevelWarn:  "warn",
		LevelInfo:  "info",
		LevelDebug: "debug",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Fatalf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	log := New(LevelDebug)
	if log.Level() != LevelDebug {
		t.Fatalf("Level() = %v, want LevelDebug", log.Level())
	}
	// Exercises every branch of Log without a test failure being possible;
	// this only needs to not panic on mixed/odd keyvals.
	log.Log(LevelInfo, "hello", "key", "value")
	log.Log(LevelWarn, "odd keyvals", "key")
	log.Log(LevelError, "non-string key", 1, "value")
	log.Log(LevelDebug, "no keyvals")
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	log := Nop()
	if log.Level() != LevelNone {
		t.Fatalf("Nop().Level() = %v, want LevelNone", log.Level())
	}
	log.Log(LevelError, "should not panic", "k", "v")
}
