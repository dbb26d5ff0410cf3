package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rymc/roomserver/internal/v1/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		assert.Equal(t, "/me", r.URL.Path)
		w.Write([]byte(`{"id": 42, "name": "Alice"}`))
	}))
	defer srv.Close()

	c := identity.New(srv.URL+"/", nil, zap.NewNop())
	info, err := c.Fetch(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, int32(42), info.ID)
	assert.Equal(t, "Alice", info.Name)
}

func TestFetchRetriesOnFailureThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id": 1, "name": "Bob"}`))
	}))
	defer srv.Close()

	c := identity.New(srv.URL+"/", nil, zap.NewNop())
	info, err := c.Fetch(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "Bob", info.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchFailsAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := identity.New(srv.URL+"/", nil, zap.NewNop())
	_, err := c.Fetch(context.Background(), "T")
	assert.Error(t, err)
}
