package commport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/allbin/go-commport/driver"
	"go.uber.org/atomic"
)

// InputStream reads from a port's session. It is created once per open port.
type InputStream struct {
	p     *port
	count *atomic.Uint64
}

// OutputStream writes to a port's session. Writes pass straight through
// unless the port had a non-zero output buffer size when the stream was
// created, in which case they are buffered until Flush.
type OutputStream struct {
	p     *port
	count *atomic.Uint64

	mu  sync.Mutex
	buf *bufio.Writer
}

// InputStream returns the port's input stream, creating it on first use.
func (p *port) InputStream() (*InputStream, error) {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	if p.IsClosed() {
		return nil, fmt.Errorf("%w: %w: %s", ErrIO, ErrPortClosed, p.Name())
	}
	if p.in == nil {
		p.in = &InputStream{p: p, count: atomic.NewUint64(0)}
	}
	return p.in, nil
}

// OutputStream returns the port's output stream, creating it on first use.
func (p *port) OutputStream() (*OutputStream, error) {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	if p.IsClosed() {
		return nil, fmt.Errorf("%w: %w: %s", ErrIO, ErrPortClosed, p.Name())
	}
	if p.out == nil {
		out := &OutputStream{p: p, count: atomic.NewUint64(0)}
		if p.outBufSize > 0 {
			out.buf = bufio.NewWriterSize(sessionWriter{p}, p.outBufSize)
		}
		p.out = out
	}
	return p.out, nil
}

func (s *InputStream) Read(b []byte) (int, error) {
	sess, err := s.p.session()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	n, err := sess.Read(b)
	s.count.Add(uint64(n))
	if err == nil || err == io.EOF {
		return n, err
	}
	return n, s.p.ioError("read", err)
}

// BytesRead is the number of bytes read through the stream.
func (s *InputStream) BytesRead() uint64 { return s.count.Load() }

func (s *OutputStream) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		n   int
		err error
	)
	if s.buf != nil {
		n, err = s.buf.Write(b)
	} else {
		n, err = sessionWriter{s.p}.Write(b)
	}
	s.count.Add(uint64(n))
	return n, err
}

// Flush writes any buffered bytes and waits until the driver reports them
// transmitted.
func (s *OutputStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushOnClose flushes unless a Write or Flush is still in progress, in
// which case the pending bytes are dropped with the session.
func (s *OutputStream) flushOnClose() error {
	if !s.mu.TryLock() {
		return errOutputBusy
	}
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *OutputStream) flushLocked() error {
	if s.buf != nil {
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	sess, err := s.p.session()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := sess.Flush(); err != nil && !errors.Is(err, driver.ErrNotSupported) {
		return s.p.ioError("flush", err)
	}
	return nil
}

// Buffered is the number of bytes waiting for Flush.
func (s *OutputStream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return 0
	}
	return s.buf.Buffered()
}

// BytesWritten is the number of bytes accepted by the stream.
func (s *OutputStream) BytesWritten() uint64 { return s.count.Load() }

type sessionWriter struct {
	p *port
}

func (w sessionWriter) Write(b []byte) (int, error) {
	sess, err := w.p.session()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	n, err := sess.Write(b)
	if err != nil {
		return n, w.p.ioError("write", err)
	}
	return n, nil
}

var errOutputBusy = errors.New("output stream busy")

// ioError wraps a driver failure on stream I/O. Errors from a session that
// Close released underneath the call also match ErrPortClosed, and reads
// the driver cannot do match ErrUnsupportedOperation.
func (p *port) ioError(op string, err error) error {
	switch {
	case p.IsClosed():
		return fmt.Errorf("%w: %w: %s %s: %w", ErrIO, ErrPortClosed, op, p.Name(), err)
	case errors.Is(err, driver.ErrNotSupported):
		return fmt.Errorf("%w: %s %s: %w", ErrUnsupportedOperation, op, p.Name(), err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, p.Name(), err)
}
