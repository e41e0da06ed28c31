package deploy

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptWatcherAnswersOnce(t *testing.T) {
	var answer bytes.Buffer
	w := newPromptWatcher(&answer, "s3cret")

	out := "deploy@docs.example.com's password: \r\nindex.html   100%  13   0.1KB/s   00:00\r\n"
	require.NoError(t, w.run(strings.NewReader(out)))
	assert.Equal(t, "s3cret\r", answer.String())
	assert.True(t, w.answered)
	assert.Contains(t, w.Transcript(), "index.html")
}

func TestPromptWatcherPromptSplitAcrossReads(t *testing.T) {
	var answer bytes.Buffer
	w := newPromptWatcher(&answer, "s3cret")

	require.NoError(t, w.run(iotest.OneByteReader(strings.NewReader("deploy@host's Password: "))))
	assert.Equal(t, "s3cret\r", answer.String())
}

func TestPromptWatcherSecondPromptRejects(t *testing.T) {
	var answer bytes.Buffer
	w := newPromptWatcher(&answer, "wrong")

	out := "deploy@host's password: \r\nPermission denied, please try again.\r\ndeploy@host's password: "
	err := w.run(strings.NewReader(out))
	assert.ErrorIs(t, err, ErrPasswordRejected)
	assert.Equal(t, "wrong\r", answer.String())
}

func TestPromptWatcherNoPrompt(t *testing.T) {
	var answer bytes.Buffer
	w := newPromptWatcher(&answer, "s3cret")

	require.NoError(t, w.run(strings.NewReader("lost connection\r\n")))
	assert.False(t, w.answered)
	assert.Empty(t, answer.String())
}

func TestPromptWatcherTreatsEIOAsClosed(t *testing.T) {
	w := newPromptWatcher(io.Discard, "s3cret")
	r := io.MultiReader(strings.NewReader("done\r\n"), iotest.ErrReader(syscall.EIO))
	assert.NoError(t, w.run(r))
}

func TestPromptWatcherPropagatesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	w := newPromptWatcher(io.Discard, "s3cret")
	assert.ErrorIs(t, w.run(iotest.ErrReader(boom)), boom)
}

func TestPromptWatcherMasksPassword(t *testing.T) {
	w := newPromptWatcher(io.Discard, "s3cret")
	require.NoError(t, w.feed([]byte("echoed s3cret back\r\n")))
	assert.Equal(t, "echoed ******** back", w.Transcript())
}

func TestPromptWatcherTranscriptIsBounded(t *testing.T) {
	w := newPromptWatcher(io.Discard, "s3cret")
	require.NoError(t, w.feed(bytes.Repeat([]byte("x"), transcriptLimit*2)))
	assert.Len(t, w.Transcript(), transcriptLimit)
}
