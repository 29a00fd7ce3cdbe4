package body

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ReadLine reads one CRLF-terminated line of at most MaxLineSize bytes and
// returns it without the terminator. The returned slice is only valid until
// the next read on r.
//
// io.EOF is returned unwrapped when r is exhausted before any byte of the
// line has been read.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			return nil, fmt.Errorf("%w: longer than %d bytes", ErrLineTooLong, r.Buffered())
		case errors.Is(err, io.EOF) && len(line) == 0:
			return nil, io.EOF
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: %q", ErrBadLine, line)
		default:
			return nil, err
		}
	}
	if len(line) > MaxLineSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrLineTooLong, len(line), MaxLineSize)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: %q", ErrBadLine, line)
	}
	return line[:len(line)-2], nil
}

func bufferedReader(r io.Reader) *bufio.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReaderSize(r, IOSize)
}
