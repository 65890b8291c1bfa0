package middleware

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/liveperf/internal/crypto"
	"github.com/stretchr/testify/require"
)

func TestDecryptMiddleware(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	report := gzipBody([]byte(`[{"id":"DataRenderDelayCount","type":"counter","delta":4}]`))
	sealed, err := crypto.Seal(&priv.PublicKey, report)
	require.NoError(t, err)

	tests := []struct {
		name       string
		key        *rsa.PrivateKey
		mandatory  bool
		version    string
		body       []byte
		wantStatus int
		wantBody   []byte
	}{
		{"sealed", priv, true, "v1", sealed, http.StatusOK, report},
		{"plain_allowed", priv, false, "", report, http.StatusOK, report},
		{"plain_rejected", priv, true, "", report, http.StatusBadRequest, nil},
		{"plain_without_body", priv, true, "", nil, http.StatusOK, []byte{}},
		{"unknown_version", priv, true, "v2", sealed, http.StatusBadRequest, nil},
		{"garbage", priv, true, "v1", []byte("{}"), http.StatusBadRequest, nil},
		{"disabled", nil, true, "", report, http.StatusOK, report},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			h := DecryptMiddleware(tt.key, tt.mandatory)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Empty(t, r.Header.Get("X-Encrypted"))
				b, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				got = b
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/updates/", bytes.NewReader(tt.body))
			if tt.version != "" {
				req.Header.Set("X-Encrypted", tt.version)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != nil {
				require.Equal(t, tt.wantBody, got)
			}
		})
	}
}
