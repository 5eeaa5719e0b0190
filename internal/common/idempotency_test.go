package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute}, mr
}

func send(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(common.IdempotencyHeader, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIdemRejectsReplay(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	require.Equal(t, http.StatusOK, send(h, "/tickets/t-1/items", "scan-1").Code)
	rr := send(h, "/tickets/t-1/items", "scan-1")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENT_REPLAY")
	require.Equal(t, 1, calls)

	// same key on another path is a different request
	require.Equal(t, http.StatusOK, send(h, "/tickets/t-2/items", "scan-1").Code)
	// no key, no bookkeeping
	require.Equal(t, http.StatusOK, send(h, "/tickets/t-1/items", "").Code)
	require.Equal(t, http.StatusOK, send(h, "/tickets/t-1/items", "").Code)
	require.Equal(t, 4, calls)

	require.Len(t, mr.Keys(), 2)
	mr.FastForward(2 * time.Minute)
	require.Equal(t, http.StatusOK, send(h, "/tickets/t-1/items", "scan-1").Code)
}

func TestIdemReleasesKeyOnFailure(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusConflict
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))

	require.Equal(t, http.StatusConflict, send(h, "/tickets/t-1/items", "scan-2").Code)
	require.Empty(t, mr.Keys())

	status = http.StatusOK
	require.Equal(t, http.StatusOK, send(h, "/tickets/t-1/items", "scan-2").Code)
	require.Equal(t, http.StatusConflict, send(h, "/tickets/t-1/items", "scan-2").Code)
}

func TestIdemStoreFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	idem := common.Idem{R: client}
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run without an idempotency claim")
	}))
	require.Equal(t, http.StatusInternalServerError, send(h, "/tickets/t-1/items", "scan-3").Code)
}
