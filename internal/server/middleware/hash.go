package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/liveperf/internal/utils"
)

// VerifyHashMiddleware checks the HashSHA256 header of a request against its
// raw body and signs the response the same way. An empty key disables it.
// It must run before the body is decompressed.
func VerifyHashMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			got := r.Header.Get("HashSHA256")
			if got != "" && got != utils.CalculateHash(bodyBytes, key) {
				http.Error(w, "invalid hash", http.StatusBadRequest)
				return
			}

			capture := &responseCapture{header: make(http.Header), status: http.StatusOK}
			next.ServeHTTP(capture, r)

			for k, v := range capture.header {
				w.Header()[k] = v
			}
			w.Header().Set("HashSHA256", utils.CalculateHash(capture.body.Bytes(), key))
			w.WriteHeader(capture.status)
			_, _ = w.Write(capture.body.Bytes())
		})
	}
}

type responseCapture struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *responseCapture) Header() http.Header         { return r.header }
func (r *responseCapture) WriteHeader(code int)        { r.status = code }
func (r *responseCapture) Write(b []byte) (int, error) { return r.body.Write(b) }
