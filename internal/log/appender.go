package log

import (
	"io"
	"sync"
)

// MultiWriter fans log output out to every added writer. A failing writer
// does not stop the others.
type MultiWriter struct {
	mu      sync.Mutex
	writers []io.Writer
	closers []io.Closer
}

// Write sends p to every writer and returns the last error seen.
func (m *MultiWriter) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

// Add appends a writer the caller keeps ownership of.
func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) addOwned(writer io.WriteCloser) *MultiWriter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writers = append(m.writers, writer)
	m.closers = append(m.closers, writer)
	return m
}

// Close closes the writers the MultiWriter opened itself, such as rotating
// files. Writers passed to Add are left open.
func (m *MultiWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	for _, c := range m.closers {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	m.closers = nil
	return err
}

// NewMultiWriter returns an empty writer set.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}
