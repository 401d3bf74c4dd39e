// Package transport provides line transcripts over byte streams and websockets.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxLineBytes bounds a single transcript line.
const MaxLineBytes = 4096

var ErrLineTooLong = errors.New("transcript line too long")

// Lines is a transcript that can be closed.
type Lines interface {
	WriteLine(line string) error
	ReadLine() (string, error)
	Close() error
}

type stream struct {
	r      *bufio.Reader
	wmu    sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// Stream builds a transcript over r and w. Every written line is flushed immediately.
// If w is also an io.Closer, Close closes it.
func Stream(r io.Reader, w io.Writer) Lines {
	s := &stream{r: bufio.NewReaderSize(r, MaxLineBytes), w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *stream) WriteLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("line %q contains a line break", line)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.WriteString(line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *stream) ReadLine() (string, error) {
	raw, isPrefix, err := s.r.ReadLine()
	if err != nil {
		return "", err
	}
	if isPrefix {
		return "", ErrLineTooLong
	}
	return strings.TrimRight(string(raw), "\r"), nil
}

func (s *stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type pipeEnd struct {
	Lines
	r *io.PipeReader
}

func (p pipeEnd) Close() error {
	err := p.Lines.Close()
	_ = p.r.Close()
	return err
}

// Pipe returns two connected in-memory transcripts: lines written to one are read from the other.
func Pipe() (Lines, Lines) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return pipeEnd{Lines: Stream(ar, aw), r: ar}, pipeEnd{Lines: Stream(br, bw), r: br}
}
