package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
)

// generateCertificate creates a fresh leaf certificate signed by the CA.
func generateCertificate(caKey *ecdsa.PrivateKey, caCert *x509.Certificate) (tls.Certificate, error) {
	var out tls.Certificate

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return out, fmt.Errorf("ecdsa.GenerateKey(): %w", err)
	}

	commonName, err := GenerateRandomString(8)
	if err != nil {
		return out, fmt.Errorf("generating random common name: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return out, fmt.Errorf("rand.Int(): %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		return out, fmt.Errorf("x509.CreateCertificate(leaf): %w", err)
	}

	out = tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	return out, nil
}
