package monitor

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/ansup-io/ansup/internal/logstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader yields its chunks one Read at a time, then the final error.
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestWatchCapturesBothStreams(t *testing.T) {
	store := logstore.New("", logstore.Options{Capacity: 16})
	var mu sync.Mutex
	var seen []logstore.Entry
	m := New(store, nil, func(e logstore.Entry) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	m.Watch(
		strings.NewReader("out-1\nout-2\n"),
		strings.NewReader("err-1\n"),
	)
	m.Wait()

	entries := store.Logs(0)
	require.Len(t, entries, 3)
	mu.Lock()
	assert.Len(t, seen, 3)
	mu.Unlock()

	var stdout, stderr int
	for _, e := range entries {
		switch e.Origin {
		case logstore.OriginStdout:
			stdout++
		case logstore.OriginStderr:
			stderr++
		}
	}
	assert.Equal(t, 2, stdout)
	assert.Equal(t, 1, stderr)
}

func TestTrailingFragmentFlushedOnEOF(t *testing.T) {
	store := logstore.New("", logstore.Options{Capacity: 16})
	m := New(store, nil, nil)

	m.Watch(strings.NewReader("whole\npartial"), strings.NewReader(""))
	m.Wait()

	entries := store.Logs(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "partial", entries[0].Message, "fragment must be flushed as the final line")
	assert.Equal(t, "whole", entries[1].Message)
}

func TestReadErrorIsSwallowedAndFragmentKept(t *testing.T) {
	store := logstore.New("", logstore.Options{Capacity: 16})
	m := New(store, nil, nil)

	broken := &chunkReader{
		chunks: [][]byte{[]byte("ok\ncut")},
		err:    errors.New("read |0: file already closed"),
	}
	m.Watch(broken, strings.NewReader(""))

	// Wait must return normally despite the stream error.
	m.Wait()

	entries := store.Logs(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "cut", entries[0].Message)
	assert.Equal(t, "ok", entries[1].Message)
}

func TestChunksSplitMidLine(t *testing.T) {
	store := logstore.New("", logstore.Options{Capacity: 16})
	m := New(store, nil, nil)

	r := &chunkReader{chunks: [][]byte{[]byte("ab"), []byte("c\nde"), []byte("f\n")}}
	m.Watch(r, strings.NewReader(""))
	m.Wait()

	entries := store.Logs(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "def", entries[0].Message)
	assert.Equal(t, "abc", entries[1].Message)
}
