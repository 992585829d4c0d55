package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"
)

const maxLineSize = 1 << 20

type lineResult struct {
	line []byte
	err  error
}

// Lines yields non-empty lines from a reader, for JSONL replay files and
// piped sidecar output. Reads happen on a separate goroutine so Next can
// return on cancellation even when the reader cannot be interrupted, as
// with stdin.
type Lines struct {
	r       io.Reader
	scanner *bufio.Scanner

	start   sync.Once
	results chan lineResult
	done    chan struct{}
	once    sync.Once
}

// NewLines wraps r. If r is an io.Closer it is closed by Close.
func NewLines(r io.Reader) *Lines {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Lines{
		r:       r,
		scanner: scanner,
		results: make(chan lineResult),
		done:    make(chan struct{}),
	}
}

// Next returns the next non-blank line, or io.EOF at the end of input or
// after Close. It returns ctx.Err() once ctx is done.
func (l *Lines) Next(ctx context.Context) ([]byte, error) {
	l.start.Do(func() { go l.read() })

	select {
	case res, ok := <-l.results:
		if !ok {
			return nil, io.EOF
		}
		return res.line, res.err
	case <-l.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Lines) read() {
	defer close(l.results)
	for {
		line, err := l.scan()
		select {
		case l.results <- lineResult{line: line, err: err}:
		case <-l.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (l *Lines) scan() ([]byte, error) {
	for l.scanner.Scan() {
		line := bytes.TrimSpace(l.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := l.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases a pending Next and closes the underlying reader when it
// supports closing. A read blocked on a reader that ignores Close finishes
// in the background.
func (l *Lines) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		if c, ok := l.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
