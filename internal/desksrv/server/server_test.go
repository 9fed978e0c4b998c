package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/db/memstore"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
)

func TestMain(m *testing.M) {
	config.TestInit()
	os.Exit(m.Run())
}

type stubSource struct {
	heightMM int
	err      apperrors.Error
}

func (s *stubSource) GetState(ctx context.Context, deskID string) (deskcommon.DeskState, apperrors.Error) {
	if s.err != nil {
		return deskcommon.DeskState{}, s.err
	}
	return deskcommon.DeskState{PositionMM: s.heightMM, SpeedMMS: 0, Status: "Normal"}, nil
}

func setupServer(t *testing.T) *DeskServer {
	t.Helper()
	memstore.Default().Reset()
	s := NewServerWithSource(&stubSource{heightMM: 700})
	s.MountHandlers()
	return s
}

func doRequest(t *testing.T, s *DeskServer, method, path, user, role string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if user != "" {
		req.Header.Set("X-Deskwise-User", user)
	}
	if role != "" {
		req.Header.Set("X-Deskwise-Role", role)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)

	parsed := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestPairUnpairFlow(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
	assert.NotEmpty(t, rsp["session_id"])

	// Another user is rejected with the occupant's name.
	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "bob", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "occupied_by:alice", rsp["reason"])

	rec, rsp = doRequest(t, s, http.MethodPost, "/unpair", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])

	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "bob", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
}

func TestPairWithoutIdentity(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "not_authenticated", rsp["reason"])
}

func TestUnpairWithoutPairing(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/unpair", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "not_found", rsp["reason"])
}

func TestBookingFlow(t *testing.T) {
	s := setupServer(t)
	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	end := start.Add(time.Hour)

	body := map[string]string{
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}
	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "alice", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])

	// Overlapping window conflicts.
	overlap := map[string]string{
		"start_time": start.Add(30 * time.Minute).Format(time.RFC3339),
		"end_time":   end.Add(30 * time.Minute).Format(time.RFC3339),
	}
	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "bob", "", overlap)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "overlap", rsp["reason"])

	// Adjacent window is accepted.
	adjacent := map[string]string{
		"start_time": end.Format(time.RFC3339),
		"end_time":   end.Add(time.Hour).Format(time.RFC3339),
	}
	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "bob", "", adjacent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
}

func TestBookingValidation(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "alice", "", map[string]string{
		"start_time": "not-a-time",
		"end_time":   "2026-03-01T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "invalid_timestamp", rsp["reason"])

	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "alice", "", map[string]string{
		"start_time": "2026-03-01T09:00:00Z",
		"end_time":   "not-a-time",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "invalid_timestamp", rsp["reason"])

	rec, _ = doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "alice", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-2/bookings", "alice", "", map[string]string{
		"start_time": "2026-03-01T11:00:00Z",
		"end_time":   "2026-03-01T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, rsp["success"])
	assert.Equal(t, "invalid_time_range", rsp["reason"])
}

func TestForceUnpairRequiresAdmin(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, rsp["success"])

	rec, _ = doRequest(t, s, http.MethodPost, "/desks/desk-1/force-unpair", "bob", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, rsp = doRequest(t, s, http.MethodPost, "/desks/desk-1/force-unpair", "bob", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
	assert.Equal(t, "alice", rsp["user_id"])
}

func TestDeskStatus(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, rsp["success"])

	rec, rsp = doRequest(t, s, http.MethodGet, "/desks/desk-1/status", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
	assert.Equal(t, true, rsp["paired"])
	assert.Equal(t, "alice", rsp["paired_user"])
	assert.Equal(t, float64(700), rsp["position_mm"])
	assert.Equal(t, "ok", rsp["telemetry"])
}

func TestErgonomicsReport(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodPost, "/desks/desk-1/pair", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, rsp["success"])

	rec, rsp = doRequest(t, s, http.MethodGet, "/users/self/ergonomics", "alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
	assert.Contains(t, rsp, "sitting_minutes")
	assert.Contains(t, rsp, "health_score")
	assert.Contains(t, rsp, "changes_per_hour")
}

func TestErgonomicsReportNoSessions(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodGet, "/users/self/ergonomics", "nobody", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, rsp["success"])
	assert.Equal(t, float64(0), rsp["total_minutes"])
	assert.Nil(t, rsp["last_transition_minutes_ago"])
}

func TestVersionAndReadiness(t *testing.T) {
	s := setupServer(t)

	rec, rsp := doRequest(t, s, http.MethodGet, "/version", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rsp["serverVersion"], deskcommon.ServerVersion)

	rec, rsp = doRequest(t, s, http.MethodGet, "/ready", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rsp["status"])
}
