package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"io"
)

// GenerateRandomString returns a random URL-safe string of the given length.
func GenerateRandomString(length int) (string, error) {
	return generateRandomString(length, rand.Reader)
}

func generateRandomString(length int, r io.Reader) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

// getRandReader returns a deterministic reader for a seed, or crypto/rand
// without one.
func getRandReader(seed string) io.Reader {
	if seed == "" {
		return rand.Reader
	}
	return newDRand(seed)
}

func newDRand(seed string) io.Reader {
	return &dRand{next: []byte(seed)}
}

// dRand is an endless hash chain over a seed.
type dRand struct {
	next []byte
}

func (d *dRand) cycle() []byte {
	result := sha512.Sum512(d.next)
	d.next = result[:sha512.Size/2]
	return result[sha512.Size/2:]
}

func (d *dRand) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		out := d.cycle()
		n += copy(b[n:], out)
	}
	return n, nil
}
