package log

import (
	"fmt"
	"net"
	"os"
	"time"
)

// loggedConn wraps a net.Conn and appends all plaintext read or written to a
// file. Closing it closes both.
type loggedConn struct {
	conn    net.Conn
	logFile *os.File
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.conn.Read(b)
	if n > 0 {
		if _, werr := lc.logFile.Write(b[:n]); werr != nil {
			return 0, fmt.Errorf("logging read: %w", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.conn.Write(b)
	if n > 0 {
		if _, werr := lc.logFile.Write(b[:n]); werr != nil {
			return 0, fmt.Errorf("logging write: %w", werr)
		}
	}
	return n, err
}

// Flush forwards to the wrapped connection if it buffers writes.
func (lc *loggedConn) Flush() error {
	if f, ok := lc.conn.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (lc *loggedConn) Close() error {
	err := lc.conn.Close()
	if ferr := lc.logFile.Close(); err == nil {
		err = ferr
	}
	return err
}

func (lc *loggedConn) LocalAddr() net.Addr {
	return lc.conn.LocalAddr()
}

func (lc *loggedConn) RemoteAddr() net.Addr {
	return lc.conn.RemoteAddr()
}

func (lc *loggedConn) SetDeadline(t time.Time) error {
	return lc.conn.SetDeadline(t)
}

func (lc *loggedConn) SetReadDeadline(t time.Time) error {
	return lc.conn.SetReadDeadline(t)
}

func (lc *loggedConn) SetWriteDeadline(t time.Time) error {
	return lc.conn.SetWriteDeadline(t)
}

// NewLoggedConn wraps a stream to log all plaintext read from and written to it.
// The log file is created or appended to at the specified path.
func NewLoggedConn(conn net.Conn, logFilePath string) (net.Conn, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", logFilePath, err)
	}

	return &loggedConn{conn: conn, logFile: logFile}, nil
}
