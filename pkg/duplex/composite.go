package duplex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by ReadToString for non UTF-8 data.
var ErrInvalidUTF8 = errors.New("stream did not contain valid UTF-8")

// ReadToEnd reads until EOF. It returns the data read so far together with
// any other error, including timeouts and would-block.
func (s *Stream) ReadToEnd() ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		n, err := s.Read(chunk)
		buf.Write(chunk[:n])
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
}

// ReadToString is ReadToEnd for UTF-8 text.
func (s *Stream) ReadToString() (string, error) {
	data, err := s.ReadToEnd()
	if err != nil {
		return string(data), err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// ReadExact fills p completely. A stream ending early yields
// io.ErrUnexpectedEOF, or io.EOF if nothing was read.
func (s *Stream) ReadExact(p []byte) error {
	_, err := io.ReadFull(s, p)
	return err
}

// WriteAll writes all of p.
func (s *Stream) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := s.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// WriteFmt formats according to format and writes the result with WriteAll.
func (s *Stream) WriteFmt(format string, a ...interface{}) error {
	return s.WriteAll([]byte(fmt.Sprintf(format, a...)))
}
