// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import "strings"

// MaxLineLength bounds a partial line; longer garbage is discarded
const MaxLineLength = 256

// LineTokenizer splits a byte stream into trimmed, non-empty lines on CR or LF
type LineTokenizer struct {
	partial []byte
	dropped int
}

// Feed appends bytes and returns every line they completed
func (t *LineTokenizer) Feed(data []byte) []string {
	var lines []string
	for _, b := range data {
		if b == '\r' || b == '\n' {
			if line := strings.TrimSpace(string(t.partial)); line != "" {
				lines = append(lines, line)
			}
			t.partial = t.partial[:0]
			continue
		}
		t.partial = append(t.partial, b)
		if len(t.partial) > MaxLineLength {
			t.partial = t.partial[:0]
			t.dropped++
		}
	}
	return lines
}

// Flush returns the pending partial line, if any, and resets the tokenizer
func (t *LineTokenizer) Flush() (string, bool) {
	line := strings.TrimSpace(string(t.partial))
	t.partial = t.partial[:0]
	return line, line != ""
}

// Dropped returns how many oversize partial lines were discarded
func (t *LineTokenizer) Dropped() int {
	return t.dropped
}

// SplitLines tokenizes a complete response buffer. A trailing unterminated
// line counts as a line because the buffer ended with the transaction.
func SplitLines(raw string) []string {
	var t LineTokenizer
	lines := t.Feed([]byte(raw))
	if last, ok := t.Flush(); ok {
		lines = append(lines, last)
	}
	return lines
}
