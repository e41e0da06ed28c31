package deploy

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
)

var passwordPrompt = []byte("password:")

const transcriptLimit = 4096

// promptWatcher reads the terminal output of the copy tool, answers the first
// password prompt and flags any further prompt as a rejected password.
type promptWatcher struct {
	password   string
	answer     io.Writer
	answered   bool
	window     []byte
	transcript []byte
}

func newPromptWatcher(answer io.Writer, password string) *promptWatcher {
	return &promptWatcher{password: password, answer: answer}
}

// run consumes r until the terminal closes. A closed terminal (EOF, or EIO
// from a pty whose slave side is gone) ends the loop without error.
func (w *promptWatcher) run(r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if feedErr := w.feed(buf[:n]); feedErr != nil {
				return feedErr
			}
		}
		if err != nil {
			if isTerminalClosed(err) {
				return nil
			}
			return err
		}
	}
}

func (w *promptWatcher) feed(chunk []byte) error {
	w.record(chunk)
	w.window = append(w.window, bytes.ToLower(chunk)...)
	for {
		idx := bytes.Index(w.window, passwordPrompt)
		if idx < 0 {
			break
		}
		if w.answered {
			return ErrPasswordRejected
		}
		if _, err := io.WriteString(w.answer, w.password+"\r"); err != nil {
			return err
		}
		w.answered = true
		w.window = w.window[idx+len(passwordPrompt):]
	}
	// Keep just enough to match a prompt split across reads.
	if keep := len(passwordPrompt) - 1; len(w.window) > keep {
		w.window = append(w.window[:0], w.window[len(w.window)-keep:]...)
	}
	return nil
}

func (w *promptWatcher) record(chunk []byte) {
	w.transcript = append(w.transcript, chunk...)
	if over := len(w.transcript) - transcriptLimit; over > 0 {
		w.transcript = w.transcript[over:]
	}
}

// Transcript returns the tail of the terminal output with the password masked.
func (w *promptWatcher) Transcript() string {
	out := strings.TrimSpace(string(w.transcript))
	if w.password != "" {
		out = strings.ReplaceAll(out, w.password, "********")
	}
	return out
}

func isTerminalClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
