package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/jwt"
	"hailo/internal/general/logger"
	"hailo/internal/general/memory"
	"hailo/internal/general/notify"
	"hailo/internal/software/ride/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t       *testing.T
	mgr     *jwt.Manager
	mux     *http.ServeMux
	handler *RideHTTPHandler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	hub := notify.NewHub(logger.Nop())
	t.Cleanup(func() { _ = hub.Close() })

	mgr, err := jwt.NewManager("handler-secret", time.Hour)
	require.NoError(t, err)

	svc := service.NewRideService(logger.Nop(), memory.NewUnitOfWork(), memory.NewRideRepo(), memory.NewEventRepo(), hub, service.RetryPolicy{
		Attempts: 2,
		Backoff:  time.Millisecond,
	})
	h := NewRideHTTPHandler(svc, logger.Nop(), mgr, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &api{t: t, mgr: mgr, mux: mux, handler: h}
}

func (a *api) token(actorID string, role user.Role) string {
	a.t.Helper()
	token, _, err := a.mgr.Issue(actorID, role)
	require.NoError(a.t, err)
	return token
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) *ride.Record {
	t.Helper()
	var record ride.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	return &record
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

var libraryRide = map[string]any{
	"pickup":      map[string]any{"label": "Home", "coordinates": map[string]any{"latitude": 43.23, "longitude": 76.88}},
	"destination": map[string]any{"label": "Library"},
}

var driverLocation = map[string]any{
	"driver_location": map[string]any{"latitude": 43.24, "longitude": 76.89},
}

func TestCreateToken(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/tokens", "", map[string]any{"actor_id": "rider-1", "role": "rider"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, user.RoleRider, resp.Role)

	claims, err := a.mgr.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "rider-1", claims.ActorID())

	rec = a.do(http.MethodPost, "/tokens", "", map[string]any{"actor_id": "x", "role": "ADMIN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/tokens", "", map[string]any{"role": "DRIVER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRide(t *testing.T) {
	a := newAPI(t)
	rider := a.token("rider-1", user.RoleRider)

	rec := a.do(http.MethodPost, "/rides", rider, libraryRide)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	record := decodeRecord(t, rec)
	assert.Equal(t, "rider-1", record.RiderID)
	assert.Equal(t, ride.StatusPending, record.Status)
	assert.Positive(t, record.EstimatedPrice)

	rec = a.do(http.MethodPost, "/rides", rider, libraryRide)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/rides", a.token("driver-1", user.RoleDriver), libraryRide)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/rides", "", libraryRide)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/rides", a.token("rider-2", user.RoleRider), map[string]any{
		"pickup": map[string]any{"label": "Home"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/rides", a.token("rider-2", user.RoleRider), map[string]any{"surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRideNeedsJSON(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/rides", bytes.NewBufferString("pickup=home"))
	req.Header.Set("Authorization", "Bearer "+a.token("rider-1", user.RoleRider))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRideLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	rider := a.token("rider-1", user.RoleRider)
	driver := a.token("driver-1", user.RoleDriver)
	rival := a.token("driver-2", user.RoleDriver)

	created := decodeRecord(t, a.do(http.MethodPost, "/rides", rider, libraryRide))

	rec := a.do(http.MethodGet, "/rides/pending", driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pool struct {
		Rides []*ride.Record `json:"rides"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	require.Len(t, pool.Rides, 1)
	assert.Equal(t, created.ID, pool.Rides[0].ID)

	rec = a.do(http.MethodGet, "/rides/pending", rider, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/accept", driver, driverLocation)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decodeRecord(t, rec)
	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DriverID)
	assert.Equal(t, "driver-1", *accepted.DriverID)

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/accept", rival, driverLocation)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ride already taken", errorOf(t, rec))

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/pickup", rival, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/cancel", driver, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/rides/active", rider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/pickup", rider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ride.StatusInProgress, decodeRecord(t, rec).Status)

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/cancel", rider, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/complete", driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ride.StatusCompleted, decodeRecord(t, rec).Status)

	// repeating a completed step is a no-op
	rec = a.do(http.MethodPost, "/rides/"+created.ID+"/complete", rider, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/rides/active", driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ride":null}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/rides/history?limit=5", driver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Rides []*ride.Record `json:"rides"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Rides, 1)
	assert.Equal(t, ride.StatusCompleted, history.Rides[0].Status)

	rec = a.do(http.MethodGet, "/rides/history?limit=abc", driver, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/rides/"+created.ID, rider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeRecord(t, rec).ID)
}

func TestAcceptWithoutBody(t *testing.T) {
	a := newAPI(t)
	created := decodeRecord(t, a.do(http.MethodPost, "/rides", a.token("rider-1", user.RoleRider), libraryRide))

	rec := a.do(http.MethodPost, "/rides/"+created.ID+"/accept", a.token("driver-1", user.RoleDriver), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decodeRecord(t, rec)
	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	assert.Nil(t, accepted.DriverLocation)

	// a body that is present is still decoded strictly
	other := decodeRecord(t, a.do(http.MethodPost, "/rides", a.token("rider-2", user.RoleRider), libraryRide))
	rec = a.do(http.MethodPost, "/rides/"+other.ID+"/accept", a.token("driver-2", user.RoleDriver), map[string]any{"surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptWhileHoldingAnotherRide(t *testing.T) {
	a := newAPI(t)
	driver := a.token("driver-1", user.RoleDriver)
	first := decodeRecord(t, a.do(http.MethodPost, "/rides", a.token("rider-1", user.RoleRider), libraryRide))
	second := decodeRecord(t, a.do(http.MethodPost, "/rides", a.token("rider-2", user.RoleRider), libraryRide))

	rec := a.do(http.MethodPost, "/rides/"+first.ID+"/accept", driver, driverLocation)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/rides/"+second.ID+"/accept", driver, driverLocation)
	assert.Equal(t, http.StatusConflict, rec.Code)
	msg := errorOf(t, rec)
	assert.NotEqual(t, ride.ReasonRideTaken, msg)
	assert.Contains(t, msg, ride.ReasonDriverBusy)

	// the second ride is still open to other drivers
	rec = a.do(http.MethodPost, "/rides/"+second.ID+"/accept", a.token("driver-2", user.RoleDriver), driverLocation)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUnknownRide(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/rides/does-not-exist", a.token("rider-1", user.RoleRider), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/rides/does-not-exist/accept", a.token("driver-1", user.RoleDriver), driverLocation)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	a.handler.SetHealthCheck(func(context.Context) error { return errors.New("connection refused") })
	rec = a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
