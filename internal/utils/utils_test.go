package utils

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestCalculateHash(t *testing.T) {
	b := []byte("payload")
	got := CalculateHash(b, "key")
	require.Equal(t, got, CalculateHash(b, "key"))
	require.NotEqual(t, got, CalculateHash(b, "other"))

	h := hmac.New(sha256.New, []byte("key"))
	_, _ = h.Write(b)
	require.Equal(t, hex.EncodeToString(h.Sum(nil)), got)
}

func TestPointerHelpers(t *testing.T) {
	f := Ptr[float64](3.14)
	i := Ptr[int64](7)
	require.InDelta(t, 3.14, *f, 1e-9)
	require.EqualValues(t, 7, *i)
}

type tempErr struct{}

func (tempErr) Error() string   { return "temp" }
func (tempErr) Timeout() bool   { return true }
func (tempErr) Temporary() bool { return true }

func TestWithRetry_NoRetryOnPermanentError(t *testing.T) {
	var n int
	err := WithRetry(context.Background(), func() error {
		n++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, 1, n)
}

func TestWithRetry_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var n int
	err := WithRetry(ctx, func() error {
		n++
		return tempErr{}
	})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, n)
}

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"pg-conn-failure", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, true},
		{"pg-unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"net-error", &net.DNSError{Err: "x"}, true},
		{"os-deadline", os.ErrDeadlineExceeded, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isRetriable(tc.err))
		})
	}
}
