package framing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/wagiedev/agentsession-go/internal/errors"
)

// DefaultMaxFrameSize is the largest line accepted when no limit is configured.
const DefaultMaxFrameSize = 1024 * 1024 // 1MB

const readBufferSize = 64 * 1024

// Reader splits a byte stream into newline-terminated frames.
//
// Partial trailing bytes are buffered across reads. Blank lines are skipped and
// a trailing carriage return is stripped. A frame longer than the limit yields a
// FrameTooLargeError; the reader then resumes at the next line.
type Reader struct {
	br       *bufio.Reader
	maxFrame int
}

// NewReader creates a Reader. A non-positive maxFrame selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}

	return &Reader{
		br:       bufio.NewReaderSize(r, readBufferSize),
		maxFrame: maxFrame,
	}
}

// Next returns the next non-blank frame without its line terminator.
// It returns io.EOF once the underlying stream is exhausted.
func (r *Reader) Next() ([]byte, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		return line, nil
	}
}

// readLine returns one line without its terminator. The size limit applies
// to the content only, so "\n" and "\r\n" endings are treated alike.
func (r *Reader) readLine() ([]byte, error) {
	var (
		buf      []byte
		size     int
		tooLarge bool
		prev     byte
	)

	bufLimit := r.maxFrame + len("\r\n")

	for {
		chunk, err := r.br.ReadSlice('\n')
		size += len(chunk)

		if !tooLarge {
			if len(buf)+len(chunk) > bufLimit {
				tooLarge = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case err == nil, stderrors.Is(err, io.EOF):
			if stderrors.Is(err, io.EOF) && size == 0 {
				return nil, io.EOF
			}

			n := size - terminatorLen(chunk, prev)
			if tooLarge || n > r.maxFrame {
				return nil, &errors.FrameTooLargeError{Size: n, Limit: r.maxFrame}
			}

			return buf[:n], nil

		case stderrors.Is(err, bufio.ErrBufferFull):
			prev = chunk[len(chunk)-1]

			continue

		default:
			return nil, err
		}
	}
}

// terminatorLen counts the trailing "\n" or "\r\n" of a line whose last
// chunk is chunk. prev is the byte read just before chunk.
func terminatorLen(chunk []byte, prev byte) int {
	n := 0
	rest := chunk

	if len(rest) > 0 && rest[len(rest)-1] == '\n' {
		n++
		rest = rest[:len(rest)-1]
	}

	last := prev
	if len(rest) > 0 {
		last = rest[len(rest)-1]
	} else if n == 0 {
		return 0
	}

	if last == '\r' {
		n++
	}

	return n
}

// Writer serializes frames onto a byte stream. Each frame is written with a
// single Write call under a mutex so concurrent writers never interleave.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame JSON-encodes v and writes it as one line.
func (w *Writer) WriteFrame(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	return w.WriteLine(ctx, data)
}

// WriteLine writes a pre-encoded frame followed by exactly one newline.
// The frame must not contain a raw newline.
func (w *Writer) WriteLine(ctx context.Context, line []byte) error {
	line = bytes.TrimRight(line, "\n")

	if bytes.IndexByte(line, '\n') >= 0 {
		return fmt.Errorf("frame contains embedded newline")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy so the caller's backing array is never mutated.
	out := make([]byte, len(line)+1)
	copy(out, line)
	out[len(line)] = '\n'

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(out); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}
