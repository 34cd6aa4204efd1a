package engine

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"dominicbreuker/tlsduplex/pkg/duplex"
)

const chachaInfo = "tlsduplex xchacha20 stream"

// XChaCha20 is a keystream engine. Each direction starts with a random
// nonce followed by the plaintext XORed with the XChaCha20 keystream of a
// key derived from the shared secret. It hides the payload from passive
// observers but does not authenticate it.
type XChaCha20 struct {
	conn net.Conn
	key  []byte

	enc *chacha20.Cipher

	dec      *chacha20.Cipher
	nonce    [chacha20.NonceSizeX]byte
	nonceLen int
}

// NewXChaCha20 binds an XChaCha20 engine keyed with secret.
func NewXChaCha20(secret string) duplex.Binder {
	key := deriveKey(secret)
	return func(conn net.Conn) duplex.Engine {
		return &XChaCha20{conn: conn, key: key}
	}
}

func deriveKey(secret string) []byte {
	key := make([]byte, chacha20.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(chachaInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		panic(fmt.Sprintf("hkdf: %v", err))
	}
	return key
}

// Write encrypts p. The first call also sends the nonce.
func (e *XChaCha20) Write(p []byte) (int, error) {
	if e.enc == nil {
		nonce := make([]byte, chacha20.NonceSizeX)
		if _, err := rand.Read(nonce); err != nil {
			return 0, fmt.Errorf("rand.Read(nonce): %w", err)
		}
		enc, err := chacha20.NewUnauthenticatedCipher(e.key, nonce)
		if err != nil {
			return 0, fmt.Errorf("chacha20.NewUnauthenticatedCipher(): %w", err)
		}
		if _, err := e.conn.Write(nonce); err != nil {
			return 0, err
		}
		e.enc = enc
	}

	out := make([]byte, len(p))
	e.enc.XORKeyStream(out, p)
	n, err := e.conn.Write(out)
	return n, err
}

// Read decrypts into p. It collects the peer's nonce first, which may
// take several calls if the pipe would block in between.
func (e *XChaCha20) Read(p []byte) (int, error) {
	for e.dec == nil {
		n, err := e.conn.Read(e.nonce[e.nonceLen:])
		e.nonceLen += n
		if e.nonceLen == len(e.nonce) {
			dec, cerr := chacha20.NewUnauthenticatedCipher(e.key, e.nonce[:])
			if cerr != nil {
				return 0, fmt.Errorf("chacha20.NewUnauthenticatedCipher(): %w", cerr)
			}
			e.dec = dec
			break
		}
		if err == io.EOF && e.nonceLen > 0 {
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}
	}

	n, err := e.conn.Read(p)
	if n > 0 {
		e.dec.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

// Flush is a no-op.
func (e *XChaCha20) Flush() error {
	return nil
}
