package framer

import (
	"bytes"
	"strings"
)

// LineFramer converts arbitrary byte chunks into whole lines. A partial
// trailing fragment is retained across Feed calls and surfaced by Flush at
// stream end. Use one framer per stream; a framer is not safe for concurrent
// use.
type LineFramer struct {
	buf bytes.Buffer
}

func New() *LineFramer { return &LineFramer{} }

// Feed appends chunk and returns the complete lines it terminated, in order.
// A CR immediately before the LF is stripped.
func (f *LineFramer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	var lines []string
	rest := chunk
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			f.buf.Write(rest)
			return lines
		}
		f.buf.Write(rest[:i])
		lines = append(lines, strings.TrimSuffix(f.buf.String(), "\r"))
		f.buf.Reset()
		rest = rest[i+1:]
	}
}

// Flush returns the retained fragment, if any, and resets the framer. The
// fragment is returned verbatim: there is no LF, so no CR stripping applies.
func (f *LineFramer) Flush() (string, bool) {
	if f.buf.Len() == 0 {
		return "", false
	}
	line := f.buf.String()
	f.buf.Reset()
	return line, true
}

// Pending reports whether a partial fragment is retained.
func (f *LineFramer) Pending() bool { return f.buf.Len() > 0 }
