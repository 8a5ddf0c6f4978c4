// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Incremental parsing of newline-delimited JSON whose chunk boundaries do
// not align with JSON boundaries. Modeled as an explicit buffer state
// machine rather than string splitting so arbitrary split points can be
// fed in tests.

// lineBuffer accumulates upstream bytes and yields complete lines. An
// unterminated trailing line is held back until more bytes arrive, and a
// consumed line that turns out to be unparseable can be requeued so the
// next read appends to it instead of losing data.
type lineBuffer struct {
	buf []byte

	// stalled is set after a requeue; NextLine yields nothing until new
	// bytes arrive, preventing a tight loop on the same bad prefix.
	stalled bool
}

// Append adds upstream bytes and clears any stall.
func (b *lineBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
	b.stalled = false
}

// NextLine pops the next newline-terminated line, without its terminator.
// ok is false when no complete line is buffered.
func (b *lineBuffer) NextLine() (line []byte, ok bool) {
	if b.stalled {
		return nil, false
	}
	idx := bytes.IndexByte(b.buf, '\n')
	if idx < 0 {
		return nil, false
	}
	line = b.buf[:idx]
	b.buf = b.buf[idx+1:]
	return bytes.TrimSuffix(line, []byte("\r")), true
}

// Requeue prepends a consumed line back onto the buffer and stalls until
// the next Append. Used when a line fails to parse: the bytes are treated
// as an incomplete prefix of data still in flight, not dropped.
func (b *lineBuffer) Requeue(line []byte) {
	joined := make([]byte, 0, len(line)+len(b.buf))
	joined = append(joined, line...)
	joined = append(joined, b.buf...)
	b.buf = joined
	b.stalled = true
}

// Pending returns the unconsumed bytes. Non-empty at stream end means the
// upstream closed mid-object.
func (b *lineBuffer) Pending() []byte {
	return b.buf
}

// ollamaStreamChunk is one NDJSON object from the self-hosted model server.
type ollamaStreamChunk struct {
	Message    Message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason"`
	Error      string  `json:"error"`
}

// dataPrefix is the optional SSE-style prefix some proxies prepend to
// NDJSON lines.
var dataPrefix = []byte("data:")

// parseStreamLine decodes one buffered line into a chunk. Empty lines
// decode to (nil, nil) and are skipped by the caller. A json error means
// the line is (or may be) an incomplete object split across reads; the
// caller requeues it rather than treating it as fatal.
func parseStreamLine(line []byte) (*ollamaStreamChunk, error) {
	line = bytes.TrimSpace(line)
	line = bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(line) == 0 {
		return nil, nil
	}
	var chunk ollamaStreamChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return nil, fmt.Errorf("incomplete or malformed stream line: %w", err)
	}
	return &chunk, nil
}
