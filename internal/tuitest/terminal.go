package tuitest

import (
	"bytes"
	"io"
)

// terminalResponder answers the capability queries bubbletea issues on
// startup; without replies the program can hang waiting on the terminal.
type terminalResponder struct {
	w   io.Writer
	buf []byte
}

var terminalReplies = []struct {
	query, reply []byte
}{
	{[]byte("\x1b[6n"), []byte("\x1b[1;1R")},
	{[]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{[]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{[]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{[]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, 128)}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.scan() {
	}
	// Keep a short tail so queries split across reads still match.
	if len(tr.buf) > 256 {
		tr.buf = tr.buf[len(tr.buf)-64:]
	}
}

func (tr *terminalResponder) scan() bool {
	matched := false
	for _, entry := range terminalReplies {
		idx := bytes.Index(tr.buf, entry.query)
		if idx < 0 {
			continue
		}
		tr.buf = tr.buf[idx+len(entry.query):]
		_, _ = tr.w.Write(entry.reply)
		matched = true
	}
	return matched
}
