package middleware

import (
	"bytes"
	"crypto/rsa"
	"io"
	"net/http"

	"github.com/and161185/liveperf/internal/crypto"
)

const encryptedHeader = "X-Encrypted"

// DecryptMiddleware opens sealed request bodies with the server's private key
// and hands the gzipped report on. When mandatory is set, a request carrying
// a plain body is rejected. A nil key disables it. It must run before hash
// verification, which covers the gzipped report.
func DecryptMiddleware(priv *rsa.PrivateKey, mandatory bool) func(http.Handler) http.Handler {
	if priv == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Header.Get(encryptedHeader) {
			case "":
				if mandatory && r.ContentLength != 0 {
					http.Error(w, "encryption required", http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
				return
			case "v1":
			default:
				http.Error(w, "unsupported encryption version", http.StatusBadRequest)
				return
			}

			sealed, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			_ = r.Body.Close()

			plain, err := crypto.Open(priv, sealed)
			if err != nil {
				http.Error(w, "decrypt failed", http.StatusBadRequest)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(plain))
			r.ContentLength = int64(len(plain))
			r.Header.Set("Content-Encoding", "gzip")
			r.Header.Del(encryptedHeader)
			next.ServeHTTP(w, r)
		})
	}
}
