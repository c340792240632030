package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/jwt"
	"hailo/internal/general/logger"
	"hailo/internal/general/websocket"
	"hailo/internal/ports"

	"github.com/google/uuid"
)

const (
	serviceCallTimeout = 5 * time.Second
	maxBodyBytes       = 256 << 10
)

// HealthCheck reports whether a dependency of the service is reachable.
type HealthCheck func(ctx context.Context) error

// RideHTTPHandler adapts HTTP requests to the RideService.
type RideHTTPHandler struct {
	svc    ports.RideService
	logger *logger.Logger
	auth   *jwt.Manager
	host   *websocket.Host
	health HealthCheck
}

// NewRideHTTPHandler wires an HTTP handler around the RideService. host may be nil, in which
// case no socket endpoints are mounted.
func NewRideHTTPHandler(
	svc ports.RideService,
	logger *logger.Logger,
	auth *jwt.Manager,
	host *websocket.Host,
) *RideHTTPHandler {
	return &RideHTTPHandler{svc: svc, logger: logger, auth: auth, host: host}
}

// SetHealthCheck makes GET /health report the given dependency.
func (handler *RideHTTPHandler) SetHealthCheck(check HealthCheck) {
	handler.health = check
}

// RegisterRoutes mounts ride endpoints on the provided mux.
func (handler *RideHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	rider := jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)
	driver := jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)
	anyone := jwt.AuthMiddlewareFunc(handler.auth)

	mux.HandleFunc("POST /rides", rider(handler.handleCreateRide))
	mux.HandleFunc("GET /rides/active", anyone(handler.handleActiveRide))
	mux.HandleFunc("GET /rides/pending", driver(handler.handlePendingRides))
	mux.HandleFunc("GET /rides/history", anyone(handler.handleHistory))
	mux.HandleFunc("GET /rides/{ride_id}", anyone(handler.handleGetRide))

	mux.HandleFunc("POST /rides/{ride_id}/accept", driver(handler.handleAccept))
	mux.HandleFunc("POST /rides/{ride_id}/pickup", anyone(handler.handleConfirmPickup))
	mux.HandleFunc("POST /rides/{ride_id}/complete", anyone(handler.handleComplete))
	mux.HandleFunc("POST /rides/{ride_id}/cancel", rider(handler.handleCancel))

	// sockets authenticate with their first frame
	if handler.host != nil {
		mux.HandleFunc("GET /ws/rider", handler.host.ConnectRider)
		mux.HandleFunc("GET /ws/driver", handler.host.ConnectDriver)
	}

	mux.HandleFunc("GET /health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- general helpers -----

// TokenRequest asks for a signed token for a rider or driver.
type TokenRequest struct {
	ActorID string    `json:"actor_id"`
	Role    user.Role `json:"role"`
}

// TokenResponse represents the response for token generation
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ActorID   string    `json:"actor_id"`
	Role      user.Role `json:"role"`
}

func (handler *RideHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	if strings.TrimSpace(req.ActorID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}
	role, err := user.ParseRole(req.Role.String())
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be RIDER or DRIVER", err)
		return
	}

	tokenString, claims, err := handler.auth.Issue(req.ActorID, role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	handler.logger.Info(logger.WithActorID(ctx, req.ActorID), "token_generated", "JWT token generated successfully",
		map[string]any{"role": role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		ActorID:   claims.ActorID(),
		Role:      role,
	})
}

func (handler *RideHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	if handler.health != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := handler.health(checkCtx); err != nil {
			handler.logger.Error(ctx, "health_check_failed", "Dependency unreachable", err, nil)
			handler.jsonResponse(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON strictly decodes a bounded JSON body and answers the request on failure.
func (handler *RideHTTPHandler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, into any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body and leaves into at its zero value.
func (handler *RideHTTPHandler) decodeOptionalJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, into any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return handler.decodeJSON(ctx, w, r, into)
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *RideHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *RideHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	if status >= 500 {
		handler.logger.Error(ctx, action, msg, err, nil)
	} else {
		handler.logger.Debug(ctx, action, msg, nil)
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps the ride error taxonomy onto HTTP statuses.
func (handler *RideHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var validation *ride.ValidationError
	var conflict *ride.ConflictError
	switch {
	case errors.As(err, &validation):
		handler.httpError(ctx, w, http.StatusBadRequest, validation.Error(), err)
	case errors.Is(err, ride.ErrRideNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "ride not found", err)
	case errors.As(err, &conflict):
		msg := conflict.Error()
		if op == "accept" && ride.IsRideTaken(err) {
			msg = ride.ReasonRideTaken
		}
		handler.httpError(ctx, w, http.StatusConflict, msg, err)
	case ride.IsTransport(err), errors.Is(err, context.DeadlineExceeded):
		handler.httpError(ctx, w, http.StatusServiceUnavailable, "temporarily unavailable, try again", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *RideHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return logger.WithRequestID(ctx, reqID)
}
