package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/general/contracts"
	"hailo/internal/general/logger"
	"hailo/internal/software/lifecycle"

	"github.com/gorilla/websocket"
)

// peer serializes writes to one socket. Session callbacks and the read loop write
// concurrently.
type peer struct {
	conn *websocket.Conn
	log  *logger.Logger
	mu   sync.Mutex
}

// wsWriteClose sends a close control frame with the given code and reason.
func (p *peer) wsWriteClose(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// writeJSON marshals v and writes a single TextMessage.
func (p *peer) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, payload)
}

func (p *peer) pingLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			p.mu.Unlock()
			if err != nil {
				// closing the socket unblocks the reader
				_ = p.conn.Close()
				p.log.Error(ctx, "ws_ping_failed", "Failed to send ping", err, nil)
				return
			}
		}
	}
}

func (p *peer) sendAuthError(message string) {
	_ = p.writeJSON(map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	})
}

// sendTransition is the session's transition callback.
func (p *peer) sendTransition(t lifecycle.Transition) {
	msg := contracts.WSRideTransition{
		Type:   contracts.WSTypeRideTransition,
		RideID: t.RideID,
		State:  t.State,
		Status: t.To,
		SentAt: time.Now().UTC(),
	}
	if err := p.writeJSON(msg); err != nil {
		p.log.Error(context.Background(), "ws_write_failed", "Failed to push transition", err, map[string]any{
			"ride_id": t.RideID,
			"state":   t.State,
		})
	}
}

// sendPool is the driver session's pool callback.
func (p *peer) sendPool(rides []*ride.Record) {
	if rides == nil {
		rides = []*ride.Record{}
	}
	msg := contracts.WSPendingRides{
		Type:   contracts.WSTypePendingRides,
		Rides:  rides,
		SentAt: time.Now().UTC(),
	}
	if err := p.writeJSON(msg); err != nil {
		p.log.Error(context.Background(), "ws_write_failed", "Failed to push pending rides", err, map[string]any{"count": len(rides)})
	}
}

func (p *peer) sendSnapshot(snap lifecycle.Snapshot, record *ride.Record) {
	_ = p.writeJSON(contracts.WSSnapshot{
		Type:   contracts.WSTypeSnapshot,
		State:  snap.State,
		Ride:   record,
		Stale:  snap.Stale,
		SentAt: time.Now().UTC(),
	})
}

func (p *peer) sendError(command, code, message string) {
	_ = p.writeJSON(contracts.WSError{
		Type:    contracts.WSTypeError,
		Command: command,
		Code:    code,
		Message: message,
	})
}

// sendCommandError maps the error taxonomy onto socket error codes.
func (p *peer) sendCommandError(command string, err error) {
	var conflict *ride.ConflictError
	switch {
	case errors.As(err, &conflict):
		switch {
		case command == cmdAccept && ride.IsRideTaken(err):
			p.sendError(command, contracts.CodeRideAlreadyTaken, ride.ReasonRideTaken)
		case conflict.Reason == ride.ReasonDriverBusy:
			p.sendError(command, contracts.CodeDriverBusy, conflict.Error())
		default:
			p.sendError(command, contracts.CodeConflict, conflict.Error())
		}
	case ride.IsValidation(err):
		p.sendError(command, contracts.CodeValidation, err.Error())
	case errors.Is(err, ride.ErrRideNotFound):
		p.sendError(command, contracts.CodeNotFound, err.Error())
	case ride.IsTransport(err):
		p.sendError(command, contracts.CodeUnavailable, "temporarily unavailable, try again")
	case errors.Is(err, errBadData), errors.Is(err, errUnknownCommand):
		p.sendError(command, contracts.CodeBadMessage, err.Error())
	default:
		p.sendError(command, contracts.CodeInternal, "internal error")
	}
}
