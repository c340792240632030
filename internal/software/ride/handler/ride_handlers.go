package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/general/jwt"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type createRideRequest struct {
	Pickup        ride.Location `json:"pickup"`
	Destination   ride.Location `json:"destination"`
	RiderLocation *geo.Point    `json:"rider_location,omitempty"`
}

type acceptRideRequest struct {
	DriverLocation *geo.Point `json:"driver_location"`
}

// ----- Handler: POST /rides -----

func (handler *RideHTTPHandler) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	ctx = logger.WithActorID(ctx, claims.ActorID())

	var req createRideRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	record, err := handler.svc.Create(callCtx, ports.CreateRideInput{
		RiderID:       claims.ActorID(),
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		RiderLocation: req.RiderLocation,
	})
	if err != nil {
		handler.serviceError(ctx, w, "create", err)
		return
	}
	handler.jsonResponse(logger.WithRideID(ctx, record.ID), w, http.StatusCreated, record)
}

// ----- Handler: GET /rides/active -----

func (handler *RideHTTPHandler) handleActiveRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	record, err := handler.svc.FindActiveFor(callCtx, claims.ActorID(), claims.Role)
	if err != nil {
		handler.serviceError(ctx, w, "active", err)
		return
	}
	if record == nil {
		handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"ride": nil})
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"ride": record})
}

// ----- Handler: GET /rides/pending -----

func (handler *RideHTTPHandler) handlePendingRides(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	limit, ok := handler.limitParam(ctx, w, r)
	if !ok {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	rides, err := handler.svc.ListPending(callCtx, limit)
	if err != nil {
		handler.serviceError(ctx, w, "pending", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"rides": nonNil(rides)})
}

// ----- Handler: GET /rides/history -----

func (handler *RideHTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	limit, ok := handler.limitParam(ctx, w, r)
	if !ok {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	rides, err := handler.svc.History(callCtx, claims.ActorID(), claims.Role, limit)
	if err != nil {
		handler.serviceError(ctx, w, "history", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"rides": nonNil(rides)})
}

// ----- Handler: GET /rides/{ride_id} -----

func (handler *RideHTTPHandler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	record, ok := handler.involvedRide(ctx, w, r)
	if !ok {
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, record)
}

// ----- Handler: POST /rides/{ride_id}/accept -----

func (handler *RideHTTPHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	rideID, ok := handler.rideIDParam(ctx, w, r)
	if !ok {
		return
	}
	ctx = logger.WithActorID(logger.WithRideID(ctx, rideID), claims.ActorID())

	// the driver location is optional, so is the body
	var req acceptRideRequest
	if !handler.decodeOptionalJSON(ctx, w, r, &req) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	record, err := handler.svc.Accept(callCtx, ports.AcceptRideInput{
		RideID:         rideID,
		DriverID:       claims.ActorID(),
		DriverLocation: req.DriverLocation,
	})
	if err != nil {
		handler.serviceError(ctx, w, "accept", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, record)
}

// ----- Handlers: POST /rides/{ride_id}/pickup|complete|cancel -----

func (handler *RideHTTPHandler) handleConfirmPickup(w http.ResponseWriter, r *http.Request) {
	handler.transition(w, r, "pickup", false, handler.svc.ConfirmPickup)
}

func (handler *RideHTTPHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	handler.transition(w, r, "complete", false, handler.svc.CompleteRide)
}

func (handler *RideHTTPHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	handler.transition(w, r, "cancel", true, handler.svc.Cancel)
}

// transition runs a status change on a ride the caller takes part in. riderOnly restricts it
// to the rider who requested the ride.
func (handler *RideHTTPHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	riderOnly bool,
	apply func(ctx context.Context, rideID string) (*ride.Record, error),
) {
	ctx := handler.withReqID(r.Context(), r)
	current, ok := handler.involvedRide(ctx, w, r)
	if !ok {
		return
	}
	claims := jwt.RequireClaims(r)
	if riderOnly && current.RiderID != claims.ActorID() {
		handler.httpError(ctx, w, http.StatusForbidden, "only the requesting rider may "+op+" this ride", nil)
		return
	}
	ctx = logger.WithActorID(logger.WithRideID(ctx, current.ID), claims.ActorID())

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	record, err := apply(callCtx, current.ID)
	if err != nil {
		handler.serviceError(ctx, w, op, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, record)
}

// involvedRide loads the path ride and checks the caller is its rider or driver. Rides
// nobody else may see answer 404.
func (handler *RideHTTPHandler) involvedRide(ctx context.Context, w http.ResponseWriter, r *http.Request) (*ride.Record, bool) {
	rideID, ok := handler.rideIDParam(ctx, w, r)
	if !ok {
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, serviceCallTimeout)
	defer cancel()

	record, err := handler.svc.Get(callCtx, rideID)
	if err != nil {
		handler.serviceError(ctx, w, "get", err)
		return nil, false
	}

	actorID := jwt.RequireClaims(r).ActorID()
	involved := record.RiderID == actorID || (record.DriverID != nil && *record.DriverID == actorID)
	if !involved {
		handler.serviceError(ctx, w, "get", ride.ErrRideNotFound)
		return nil, false
	}
	return record, true
}

func (handler *RideHTTPHandler) rideIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", errors.New("missing ride_id"))
		return "", false
	}
	return rideID, true
}

// limitParam reads ?limit; zero means the service default.
func (handler *RideHTTPHandler) limitParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 200 {
		handler.httpError(ctx, w, http.StatusBadRequest, "limit must be between 1 and 200", err)
		return 0, false
	}
	return limit, true
}

func nonNil(rides []*ride.Record) []*ride.Record {
	if rides == nil {
		return []*ride.Record{}
	}
	return rides
}
