// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger keeps a bounded, in-memory log of tagged messages shared
// by the loader, the host and the command line driver. Consecutive
// identical messages are folded into a single entry with a repeat count.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// The maximum number of entries held by the central logger.
const maxCentral = 256

var central = NewLogger(maxCentral)

// Log adds a tagged message to the central log.
func Log(tag, detail string) {
	central.Log(tag, detail)
}

// Logf adds a tagged, formatted message to the central log.
func Logf(tag, format string, args ...any) {
	central.Logf(tag, format, args...)
}

// Write all entries in the central log to 'w'.
func Write(w io.Writer) {
	central.Write(w)
}

// Tail writes the most recent 'n' entries of the central log to 'w'.
func Tail(w io.Writer, n int) {
	central.Tail(w, n)
}

// SetEcho causes every new entry of the central log to also be written to
// 'w'. A nil writer turns echoing off.
func SetEcho(w io.Writer) {
	central.SetEcho(w)
}

// Clear removes all entries from the central log.
func Clear() {
	central.Clear()
}

// An Entry is a single log message.
type Entry struct {
	Tag      string
	Detail   string
	Repeated int // number of identical messages folded into this one
}

func (e *Entry) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "%s: %s", e.Tag, e.Detail)
	if e.Repeated > 0 {
		fmt.Fprintf(&s, " (repeat x%d)", e.Repeated+1)
	}
	s.WriteByte('\n')
	return s.String()
}

// A Logger holds up to a fixed number of entries, discarding the oldest
// when full. It is safe for concurrent use.
type Logger struct {
	mu         sync.Mutex
	maxEntries int
	entries    []Entry
	echo       io.Writer
}

// NewLogger creates a logger holding at most 'maxEntries' entries.
func NewLogger(maxEntries int) *Logger {
	return &Logger{maxEntries: maxEntries}
}

// Log adds a tagged message.
func (l *Logger) Log(tag, detail string) {
	// entries are single lines
	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", " ")

	l.mu.Lock()
	defer l.mu.Unlock()

	var e *Entry
	if n := len(l.entries); n > 0 && l.entries[n-1].Tag == tag && l.entries[n-1].Detail == detail {
		e = &l.entries[n-1]
		e.Repeated++
	} else {
		l.entries = append(l.entries, Entry{Tag: tag, Detail: detail})
		if len(l.entries) > l.maxEntries {
			l.entries = l.entries[len(l.entries)-l.maxEntries:]
		}
		e = &l.entries[len(l.entries)-1]
	}

	if l.echo != nil {
		io.WriteString(l.echo, e.String())
	}
}

// Logf adds a tagged, formatted message.
func (l *Logger) Logf(tag, format string, args ...any) {
	l.Log(tag, fmt.Sprintf(format, args...))
}

// Write all entries to 'w'.
func (l *Logger) Write(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		io.WriteString(w, l.entries[i].String())
	}
}

// Tail writes the most recent 'n' entries to 'w'.
func (l *Logger) Tail(w io.Writer, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n = max(0, min(n, len(l.entries)))
	for i := len(l.entries) - n; i < len(l.entries); i++ {
		io.WriteString(w, l.entries[i].String())
	}
}

// SetEcho causes every new entry to also be written to 'w'. A nil writer
// turns echoing off.
func (l *Logger) SetEcho(w io.Writer) {
	l.mu.Lock()
	l.echo = w
	l.mu.Unlock()
}

// Clear removes all entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.mu.Unlock()
}

// Len returns the number of entries currently held.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
