// Package crypto seals agent reports for the server with a hybrid RSA and
// AES-GCM envelope.
package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNoPEMBlocks    = errors.New("no PEM blocks found")
	ErrNotRSAPublic   = errors.New("PEM is not an RSA public key")
	ErrNotRSAPrivate  = errors.New("PEM is not an RSA private key")
	ErrUnsupportedPEM = errors.New("unsupported PEM block type")
)

// ReadPublicKey loads the agent's RSA public key from a PEM file.
func ReadPublicKey(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParsePublicKey(b)
}

// ReadPrivateKey loads the server's RSA private key from a PEM file.
func ReadPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKey(b)
}

// ParsePublicKey returns the first "PUBLIC KEY" (PKIX) or "RSA PUBLIC KEY"
// (PKCS#1) block. Other blocks are skipped.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	return firstBlock(pemBytes, func(block *pem.Block) (*rsa.PublicKey, bool, error) {
		switch block.Type {
		case "PUBLIC KEY":
			key, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, true, fmt.Errorf("parse PKIX public key: %w", err)
			}
			pub, ok := key.(*rsa.PublicKey)
			if !ok {
				return nil, true, ErrNotRSAPublic
			}
			return pub, true, nil
		case "RSA PUBLIC KEY":
			pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return nil, true, fmt.Errorf("parse PKCS1 public key: %w", err)
			}
			return pub, true, nil
		}
		return nil, false, nil
	})
}

// ParsePrivateKey returns the first "RSA PRIVATE KEY" (PKCS#1) or
// "PRIVATE KEY" (PKCS#8) block. Encrypted PEM is not supported.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	return firstBlock(pemBytes, func(block *pem.Block) (*rsa.PrivateKey, bool, error) {
		switch block.Type {
		case "RSA PRIVATE KEY":
			priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, true, fmt.Errorf("parse PKCS1 private key: %w", err)
			}
			return priv, true, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, true, fmt.Errorf("parse PKCS8 private key: %w", err)
			}
			priv, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, true, ErrNotRSAPrivate
			}
			return priv, true, nil
		}
		return nil, false, nil
	})
}

// firstBlock walks the PEM blocks until parse claims one.
func firstBlock[K any](pemBytes []byte, parse func(*pem.Block) (K, bool, error)) (K, error) {
	var zero K
	found := false
	for {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		found = true
		if key, ok, err := parse(block); ok {
			return key, err
		}
	}
	if !found {
		return zero, ErrNoPEMBlocks
	}
	return zero, ErrUnsupportedPEM
}
