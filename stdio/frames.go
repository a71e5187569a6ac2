package stdio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// frameReader splits the input stream into newline-terminated frames no
// larger than max bytes.
type frameReader struct {
	br      *bufio.Reader
	max     int
	buf     []byte
	pending error
}

func newFrameReader(r io.Reader, max int) *frameReader {
	return &frameReader{br: bufio.NewReaderSize(r, 64*1024), max: max}
}

// next returns the following frame without its line terminator. An oversize
// frame is consumed up to its newline and reported as errFrameTooLarge so
// the caller can resynchronize. A final line without a newline is still
// returned; io.EOF follows on the next call.
func (fr *frameReader) next() ([]byte, error) {
	if fr.pending != nil {
		return nil, fr.pending
	}
	fr.buf = fr.buf[:0]
	tooLarge := false
	for {
		chunk, err := fr.br.ReadSlice('\n')
		if !tooLarge {
			if len(fr.buf)+len(chunk) > fr.max+1 {
				tooLarge = true
				fr.buf = fr.buf[:0]
			} else {
				fr.buf = append(fr.buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if len(fr.buf) == 0 && !tooLarge {
				return nil, err
			}
			fr.pending = err
		}
		break
	}
	if tooLarge {
		return nil, errFrameTooLarge
	}
	return bytes.TrimRight(fr.buf, "\r\n"), nil
}
