package crypto

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSealOpen(t *testing.T) {
	priv := testKey()
	plain := gzipped(t, []byte(`[{"id":"DataRenderDelay","type":"gauge","value":120}]`))

	sealed, err := Seal(&priv.PublicKey, plain)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(sealed, &env))
	require.Equal(t, Version1, env.V)
	require.Equal(t, AlgRSAOAEP256, env.Alg)
	require.Equal(t, EncAES256GCM, env.Enc)

	got, err := Open(priv, sealed)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestSeal_Randomized(t *testing.T) {
	pub := &testKey().PublicKey
	a, err := Seal(pub, []byte("same report"))
	require.NoError(t, err)
	b, err := Seal(pub, []byte("same report"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSealOpen_NilKeys(t *testing.T) {
	_, err := Seal(nil, []byte("x"))
	require.ErrorIs(t, err, ErrNilKey)
	_, err = Open(nil, []byte("{}"))
	require.ErrorIs(t, err, ErrNilKey)
}

func TestOpen_Rejects(t *testing.T) {
	priv := testKey()
	sealed, err := Seal(&priv.PublicKey, []byte(`{"x":1}`))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(sealed, &env))
	mutate := func(f func(e *Envelope)) []byte {
		e := env
		f(&e)
		b, err := json.Marshal(e)
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name    string
		in      []byte
		wantErr error
	}{
		{"broken_json", []byte("{"), nil},
		{"unknown_version", mutate(func(e *Envelope) { e.V = 2 }), ErrBadParams},
		{"unknown_alg", mutate(func(e *Envelope) { e.Alg = "RSA1_5" }), ErrBadParams},
		{"bad_base64", mutate(func(e *Envelope) { e.IV = "!!" }), ErrBadB64},
		{"short_nonce", mutate(func(e *Envelope) { e.IV = "AAAA" }), ErrWrongIV},
		{"empty_ciphertext", mutate(func(e *Envelope) { e.CT = "" }), ErrEmptyCipher},
		{"tampered_ciphertext", mutate(func(e *Envelope) {
			b := []byte(e.CT)
			if b[0] == 'A' {
				b[0] = 'B'
			} else {
				b[0] = 'A'
			}
			e.CT = string(b)
		}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(priv, tt.in)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
