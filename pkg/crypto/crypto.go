// Package crypto derives TLS configurations from a shared key.
//
// Both ends derive the same CA from the key and present a leaf certificate
// signed by it. Peers verify each other against that CA only, ignoring
// host names. Without a key a random CA is used and peers are not verified.
package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// Bundle holds a CA and a leaf certificate signed by it.
type Bundle struct {
	CAPool *x509.CertPool
	Cert   tls.Certificate

	verify bool
}

// NewBundle derives the CA from key and issues a leaf certificate. An empty
// key yields a random CA and disables peer verification.
func NewBundle(key string) (*Bundle, error) {
	caPool, cert, err := GenerateCertificates(key)
	if err != nil {
		return nil, err
	}
	return &Bundle{CAPool: caPool, Cert: cert, verify: key != ""}, nil
}

// GenerateCertificates returns the CA pool for seed and a fresh leaf
// certificate signed by that CA. An empty seed picks a random one.
func GenerateCertificates(seed string) (*x509.CertPool, tls.Certificate, error) {
	var cert tls.Certificate
	var err error

	if seed == "" {
		seed, err = GenerateRandomString(32)
		if err != nil {
			return nil, cert, fmt.Errorf("GenerateRandomString(32): %w", err)
		}
	}

	caKey, caCert, err := generateCA(seed)
	if err != nil {
		return nil, cert, fmt.Errorf("generateCA(): %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	cert, err = generateCertificate(caKey, caCert)
	if err != nil {
		return nil, cert, fmt.Errorf("generateCertificate(): %w", err)
	}
	return pool, cert, nil
}

// ClientConfig returns a TLS 1.3 client config. With a key the client
// presents its certificate and verifies the server against the CA.
func (b *Bundle) ClientConfig() *tls.Config {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true, // verified below, without host names
	}
	if b.verify {
		cfg.Certificates = []tls.Certificate{b.Cert}
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return customVerifier(b.CAPool, rawCerts)
		}
	}
	return cfg
}

// ServerConfig returns a TLS 1.3 server config. With a key clients must
// present a certificate signed by the CA.
func (b *Bundle) ServerConfig() *tls.Config {
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{b.Cert},
	}
	if b.verify {
		cfg.ClientAuth = tls.RequireAnyClientCert
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return customVerifier(b.CAPool, rawCerts)
		}
	}
	return cfg
}

// customVerifier verifies the certificate but cares only about the root certificate, not SANs
func customVerifier(caCert *x509.CertPool, rawCerts [][]byte) error {
	if len(rawCerts) != 1 {
		return fmt.Errorf("unexpected number of rawCerts: %d", len(rawCerts))
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("x509.ParseCertificate(rawCert): %w", err)
	}

	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:     caCert,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return fmt.Errorf("cert.Verify(caCert): %w", err)
	}

	return nil
}
