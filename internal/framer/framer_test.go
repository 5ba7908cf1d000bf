package framer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedSplitsLines(t *testing.T) {
	f := New()
	lines := f.Feed([]byte("alpha\nbeta\n"))
	require.Equal(t, []string{"alpha", "beta"}, lines)
	_, ok := f.Flush()
	assert.False(t, ok, "no fragment should remain after terminated lines")
}

func TestFeedRetainsFragmentAcrossCalls(t *testing.T) {
	f := New()
	assert.Empty(t, f.Feed([]byte("ab")))
	assert.True(t, f.Pending())

	lines := f.Feed([]byte("c\nde"))
	require.Equal(t, []string{"abc"}, lines)

	frag, ok := f.Flush()
	require.True(t, ok)
	assert.Equal(t, "de", frag)
	assert.False(t, f.Pending())
}

func TestFeedStripsCRBeforeLF(t *testing.T) {
	f := New()
	lines := f.Feed([]byte("win\r\nnix\n"))
	require.Equal(t, []string{"win", "nix"}, lines)
}

func TestFeedEmptyLines(t *testing.T) {
	f := New()
	lines := f.Feed([]byte("\n\nx\n"))
	require.Equal(t, []string{"", "", "x"}, lines)
}

func TestFlushIsOneShot(t *testing.T) {
	f := New()
	f.Feed([]byte("tail"))

	frag, ok := f.Flush()
	require.True(t, ok)
	assert.Equal(t, "tail", frag)

	_, ok = f.Flush()
	assert.False(t, ok, "second flush must report nothing retained")
}

func TestFeedNilAndEmptyChunks(t *testing.T) {
	f := New()
	assert.Empty(t, f.Feed(nil))
	assert.Empty(t, f.Feed([]byte{}))
	assert.False(t, f.Pending())
}

func TestFeedByteAtATime(t *testing.T) {
	f := New()
	var got []string
	for _, b := range []byte("a\nbc\n") {
		got = append(got, f.Feed([]byte{b})...)
	}
	require.Equal(t, []string{"a", "bc"}, got)
}
