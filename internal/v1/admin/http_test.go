package admin_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rymc/roomserver/internal/v1/admin"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/rymc/roomserver/internal/v1/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-admin-secret-at-least-32-bytes-long"

func signAdminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator"})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newTestAdminServer(t *testing.T) (*admin.Server, *room.Table, *security.Store) {
	t.Helper()
	table := room.NewTable()
	secStore := security.New(t.TempDir() + "/security.json")
	srv, err := admin.New(table, secStore, testSecret, "1000-M", zap.NewNop())
	require.NoError(t, err)
	return srv, table, secStore
}

func TestAdminRoutesRejectMissingToken(t *testing.T) {
	srv, _, _ := newTestAdminServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/rooms", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesAcceptValidToken(t *testing.T) {
	srv, _, _ := newTestAdminServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDisbandMissingRoomReturnsNotFound(t *testing.T) {
	srv, _, _ := newTestAdminServer(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/rooms/missing/disband", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthRouteNeedsNoToken(t *testing.T) {
	srv, _, _ := newTestAdminServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
