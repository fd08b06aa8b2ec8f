package logger_test

import (
	"strings"
	"testing"

	"github.com/beevik/nes6502/logger"
)

func expectString(t *testing.T, got, exp string) {
	t.Helper()
	if got != exp {
		t.Errorf("exp: %q, got: %q", exp, got)
	}
}

func TestLogger(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	expectString(t, w.String(), "")

	log.Log("test", "this is a test")
	log.Write(w)
	expectString(t, w.String(), "test: this is a test\n")

	w.Reset()
	log.Logf("test2", "value $%02X", 0x1f)
	log.Write(w)
	expectString(t, w.String(), "test: this is a test\ntest2: value $1F\n")

	// Tail copes with too many, exactly enough, fewer and no entries.
	for _, c := range []struct {
		n   int
		exp string
	}{
		{100, "test: this is a test\ntest2: value $1F\n"},
		{2, "test: this is a test\ntest2: value $1F\n"},
		{1, "test2: value $1F\n"},
		{0, ""},
	} {
		w.Reset()
		log.Tail(w, c.n)
		expectString(t, w.String(), c.exp)
	}
}

func TestRepeats(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log("cpu", "halted")
	log.Log("cpu", "halted")
	log.Log("cpu", "halted")
	log.Log("host", "reset")
	log.Write(w)
	expectString(t, w.String(), "cpu: halted (repeat x3)\nhost: reset\n")
	if log.Len() != 2 {
		t.Errorf("exp 2 entries, got %d", log.Len())
	}
}

func TestMaxEntries(t *testing.T) {
	log := logger.NewLogger(2)
	log.Log("a", "1")
	log.Log("b", "2")
	log.Log("c", "3")

	w := &strings.Builder{}
	log.Write(w)
	expectString(t, w.String(), "b: 2\nc: 3\n")

	log.Clear()
	if log.Len() != 0 {
		t.Errorf("Clear left %d entries", log.Len())
	}
}

func TestEcho(t *testing.T) {
	log := logger.NewLogger(10)
	w := &strings.Builder{}
	log.SetEcho(w)
	log.Log("tag", "line one\nline two")
	log.Log("tag", "line one\nline two")
	log.SetEcho(nil)
	log.Log("tag", "quiet")
	expectString(t, w.String(), "tag: line one line two\ntag: line one line two (repeat x2)\n")
}
