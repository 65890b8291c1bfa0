// Package transport holds http.RoundTrippers used by the agent client.
package transport

import (
	"bytes"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/liveperf/internal/crypto"
)

// EncryptedHeader marks a sealed request body and names the envelope version.
const EncryptedHeader = "X-Encrypted"

// EncryptRoundTripper seals every request body with the server's public key.
// The body is expected to be gzipped already; the gzip marker moves inside the
// envelope, so Content-Encoding is dropped.
type EncryptRoundTripper struct {
	Base   http.RoundTripper
	PubKey *rsa.PublicKey
}

func (e *EncryptRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := e.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if e.PubKey == nil || req.Body == nil || req.Body == http.NoBody {
		return base.RoundTrip(req)
	}

	plain, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	sealed, err := crypto.Seal(e.PubKey, plain)
	if err != nil {
		return nil, fmt.Errorf("seal request body: %w", err)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(sealed))
	out.ContentLength = int64(len(sealed))
	out.GetBody = nil
	out.Header.Set("Content-Type", "application/json")
	out.Header.Set(EncryptedHeader, "v1")
	out.Header.Del("Content-Encoding")
	return base.RoundTrip(out)
}

// NewHTTPClient builds the agent's HTTP client. With a public key path every
// report is sealed.
func NewHTTPClient(timeoutSec int, pubKeyPath string) (*http.Client, error) {
	hc := &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}
	if pubKeyPath == "" {
		return hc, nil
	}
	pub, err := crypto.ReadPublicKey(pubKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load public key: %w", err)
	}
	hc.Transport = &EncryptRoundTripper{Base: http.DefaultTransport, PubKey: pub}
	return hc, nil
}
