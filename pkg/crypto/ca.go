package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"time"
)

var (
	notBefore = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter  = time.Date(2063, 4, 5, 11, 0, 0, 0, time.UTC)
)

// generateCA creates a self-signed CA. Key and subject depend only on seed,
// so both ends derive the same trust anchor from a shared key.
func generateCA(seed string) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	rng := getRandReader(seed)

	key, err := generateCAKey(rng)
	if err != nil {
		return nil, nil, fmt.Errorf("generateCAKey(): %w", err)
	}

	cn, err := generateRandomString(8, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("generating random common name: %w", err)
	}
	org, err := generateRandomString(8, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("generating random organization: %w", err)
	}

	tmpl := x509.Certificate{
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{org},
		},
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("x509.CreateCertificate(ca): %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("x509.ParseCertificate(ca): %w", err)
	}
	return key, cert, nil
}

// generateCAKey derives a P-256 key from rng. ecdsa.GenerateKey may mix in
// extra randomness, so the scalar is derived directly.
func generateCAKey(rng io.Reader) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	params := curve.Params()

	b := make([]byte, params.BitSize/8+8)
	if _, err := io.ReadFull(rng, b); err != nil {
		return nil, err
	}

	// d in [1, N-1]
	d := new(big.Int).SetBytes(b)
	nMinusOne := new(big.Int).Sub(params.N, big.NewInt(1))
	d.Mod(d, nMinusOne)
	d.Add(d, big.NewInt(1))

	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(d.FillBytes(make([]byte, 32)))
	return key, nil
}
