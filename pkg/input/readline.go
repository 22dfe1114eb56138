// Package input reads user input line by line without blocking callers that
// need to honor a context.
package input

import (
	"bufio"
	"context"
	"io"
	"strings"
)

type result struct {
	line string
	err  error
}

// LineReader reads lines from an io.Reader on its own goroutine so a pending
// read never blocks past context cancellation. Buffered input is kept between
// calls.
type LineReader struct {
	results chan result
}

func NewLineReader(rd io.Reader) *LineReader {
	lr := &LineReader{results: make(chan result)}
	go func() {
		defer close(lr.results)

		reader := bufio.NewReader(rd)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lr.results <- result{line: strings.TrimRight(line, "\r\n")}
			}
			if err != nil {
				lr.results <- result{err: err}
				return
			}
		}
	}()
	return lr
}

// ReadLine returns the next line without its line ending. It returns io.EOF
// once the input is exhausted.
func (lr *LineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-lr.results:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

// ReadLine reads a single line from rd.
func ReadLine(ctx context.Context, rd io.Reader) (string, error) {
	return NewLineReader(rd).ReadLine(ctx)
}
