package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a read is abandoned because its context ended.
var ErrInputCancelled = errors.New("input canceled")

// NonBlockingReader reads lines with context cancellation. A single goroutine
// reads ahead, so a line that arrives after a cancelled read is kept for the next one.
type NonBlockingReader struct {
	reader *bufio.Reader
	lines  chan lineResult
	once   sync.Once
}

type lineResult struct {
	err   error
	value string
}

// NewNonBlockingReader creates a reader over r.
func NewNonBlockingReader(r io.Reader) *NonBlockingReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &NonBlockingReader{
		reader: bufio.NewReader(r),
		lines:  make(chan lineResult),
	}
}

func (r *NonBlockingReader) start() {
	go func() {
		for {
			value, err := r.reader.ReadString('\n')
			if value == "" && err != nil {
				r.lines <- lineResult{err: err}
				close(r.lines)
				return
			}
			// A final line without a newline is still a line.
			r.lines <- lineResult{value: value}
		}
	}()
}

// ReadLine returns the next line without surrounding whitespace.
// When the input ends it returns the read error once and io.EOF afterwards.
func (r *NonBlockingReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.once.Do(r.start)

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}
