package rgbfade

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
)

// lineBacklog is the number of lines that may be buffered before the reader
// stops reading.
const lineBacklog = 16

// MaxLineLength is the longest line delivered by a LineReader. The rest of a
// longer line is discarded.
const MaxLineLength = 4096

// LineReader reads newline-terminated lines from a reader in the background.
// It implements LineSource. Run must be running for lines to arrive.
type LineReader struct {
	r     io.Reader
	lines chan string
	err   error // set before lines is closed
}

var _ LineSource = (*LineReader)(nil)

// NewLineReader creates a new LineReader reading from r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:     r,
		lines: make(chan string, lineBacklog),
	}
}

// Run reads lines until the reader is exhausted, fails or ctx is canceled.
// A read blocked on the underlying reader is only unblocked by closing it.
// Lines longer than MaxLineLength are truncated, so noise without a newline
// never stops the reader.
func (l *LineReader) Run(ctx context.Context) error {
	defer close(l.lines)

	r := bufio.NewReaderSize(l.r, MaxLineLength)
	for {
		line, err := readLine(r)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// The reader was most likely closed to unblock us.
				l.err = ctxErr
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				l.err = io.EOF
				return nil
			}
			l.err = errors.Wrap(err, "failed to read line")
			return l.err
		}

		select {
		case <-ctx.Done():
			l.err = ctx.Err()
			return l.err
		case l.lines <- line:
		}
	}
}

// readLine reads one line without its line ending, keeping at most
// MaxLineLength bytes of it.
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if room := MaxLineLength - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if !isPrefix {
			return string(line), nil
		}
	}
}

// ReadLine implements LineSource.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-l.lines:
		if !ok {
			return "", l.err
		}
		return line, nil
	}
}

// Pending implements LineSource.
func (l *LineReader) Pending() (string, bool) {
	select {
	case line, ok := <-l.lines:
		return line, ok
	default:
		return "", false
	}
}
