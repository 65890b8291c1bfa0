package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope header values of the only supported format.
const (
	AlgRSAOAEP256 = "RSA-OAEP-256"
	EncAES256GCM  = "AES-256-GCM"
	Version1      = 1
)

const (
	aesKeySize = 32
	nonceSize  = 12
)

var (
	ErrNilKey       = errors.New("nil key")
	ErrBadParams    = errors.New("bad envelope params")
	ErrBadB64       = errors.New("bad base64 field")
	ErrWrongKeySize = errors.New("wrong AES key size")
	ErrWrongIV      = errors.New("wrong IV size")
	ErrEmptyCipher  = errors.New("empty ciphertext")
)

// Envelope is the JSON body of an encrypted report. Binary fields are base64.
type Envelope struct {
	V   int    `json:"v"`
	Alg string `json:"alg"`
	Enc string `json:"enc"`
	EK  string `json:"ek"` // RSA-encrypted AES key
	IV  string `json:"iv"` // GCM nonce
	CT  string `json:"ct"` // ciphertext with tag
}

// Seal encrypts plain (the gzipped report) with a fresh AES-256 key and wraps
// the key with RSA-OAEP(SHA-256).
func Seal(pub *rsa.PublicKey, plain []byte) ([]byte, error) {
	if pub == nil {
		return nil, ErrNilKey
	}

	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ek, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString
	return json.Marshal(Envelope{
		V:   Version1,
		Alg: AlgRSAOAEP256,
		Enc: EncAES256GCM,
		EK:  b64(ek),
		IV:  b64(iv),
		CT:  b64(gcm.Seal(nil, iv, plain, nil)),
	})
}

// Open reverses Seal. A tampered envelope fails GCM authentication.
func Open(priv *rsa.PrivateKey, sealed []byte) ([]byte, error) {
	if priv == nil {
		return nil, ErrNilKey
	}
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.V != Version1 || env.Alg != AlgRSAOAEP256 || env.Enc != EncAES256GCM {
		return nil, ErrBadParams
	}

	var ek, iv, ct []byte
	for _, f := range []struct {
		src string
		dst *[]byte
	}{{env.EK, &ek}, {env.IV, &iv}, {env.CT, &ct}} {
		b, err := base64.StdEncoding.DecodeString(f.src)
		if err != nil {
			return nil, ErrBadB64
		}
		*f.dst = b
	}
	if len(iv) != nonceSize {
		return nil, ErrWrongIV
	}
	if len(ct) == 0 {
		return nil, ErrEmptyCipher
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ek, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}
	if len(key) != aesKeySize {
		return nil, ErrWrongKeySize
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, ct, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blk)
}
