package mocks

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockStdio stands in for stdin and stdout. Input is fed through a pipe so
// reads block like a terminal; output is collected in memory.
type MockStdio struct {
	stdinR *io.PipeReader
	stdinW *io.PipeWriter

	mu      sync.Mutex
	changed *sync.Cond
	out     strings.Builder
}

// NewMockStdio creates a new mock stdio.
func NewMockStdio() *MockStdio {
	r, w := io.Pipe()
	m := &MockStdio{stdinR: r, stdinW: w}
	m.changed = sync.NewCond(&m.mu)
	return m
}

// WriteToStdin simulates user input. It blocks until the input is read.
func (m *MockStdio) WriteToStdin(data []byte) (int, error) {
	return m.stdinW.Write(data)
}

// CloseStdin simulates the end of input.
func (m *MockStdio) CloseStdin() error {
	return m.stdinW.Close()
}

// GetStdin has the signature of config.StdinFunc.
func (m *MockStdio) GetStdin() io.Reader {
	return m.stdinR
}

// GetStdout has the signature of config.StdoutFunc.
func (m *MockStdio) GetStdout() io.Writer {
	return stdoutWriter{m}
}

// Output returns everything written to stdout so far.
func (m *MockStdio) Output() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.String()
}

// WaitForOutput waits until stdout contains expected.
func (m *MockStdio) WaitForOutput(expected string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	wake := time.AfterFunc(timeout, func() {
		m.mu.Lock()
		m.changed.Broadcast()
		m.mu.Unlock()
	})
	defer wake.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if strings.Contains(m.out.String(), expected) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for output %q, got: %q", expected, m.out.String())
		}
		m.changed.Wait()
	}
}

// Close ends stdin.
func (m *MockStdio) Close() error {
	return m.stdinW.Close()
}

type stdoutWriter struct {
	m *MockStdio
}

func (w stdoutWriter) Write(p []byte) (int, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()

	w.m.out.Write(p)
	w.m.changed.Broadcast()
	return len(p), nil
}
