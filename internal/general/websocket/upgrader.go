package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/contracts"
	"hailo/internal/general/jwt"
	"hailo/internal/general/logger"
	"hailo/internal/software/lifecycle"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	authTimeout      = 10 * time.Second
	readIdleTimeout  = 60 * time.Second
	pingInterval     = 30 * time.Second
	commandTimeout   = 10 * time.Second
	maxFrameBytes    = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Host serves one lifecycle session per authenticated socket.
type Host struct {
	logger *logger.Logger
	jwtMgr *jwt.Manager
	deps   lifecycle.Deps
}

// NewHost creates the socket host. Sessions share deps.
func NewHost(logger *logger.Logger, jwtMgr *jwt.Manager, deps lifecycle.Deps) *Host {
	return &Host{logger: logger, jwtMgr: jwtMgr, deps: deps}
}

// commandFunc handles one inbound frame of an authenticated socket.
type commandFunc func(ctx context.Context, msg contracts.WSInbound) error

// ConnectRider handles GET /ws/rider.
func (h *Host) ConnectRider(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, user.RoleRider, func(ctx context.Context, p *peer, riderID string) (commandFunc, func()) {
		session := lifecycle.NewRiderSession(riderID, h.deps, p.sendTransition)
		h.resume(ctx, p, session.Resume, session.Snapshot)
		return h.riderCommands(p, session), session.Close
	})
}

// ConnectDriver handles GET /ws/driver.
func (h *Host) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, user.RoleDriver, func(ctx context.Context, p *peer, driverID string) (commandFunc, func()) {
		session := lifecycle.NewDriverSession(driverID, h.deps, p.sendTransition, p.sendPool)
		h.resume(ctx, p, session.Resume, session.Snapshot)
		return h.driverCommands(p, session), session.Close
	})
}

// serve upgrades, authenticates the first frame, then runs the read loop until the socket
// closes. start builds the session and returns its command handler and closer.
func (h *Host) serve(
	w http.ResponseWriter,
	r *http.Request,
	role user.Role,
	start func(ctx context.Context, p *peer, actorID string) (commandFunc, func()),
) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()

	p := &peer{conn: conn, log: h.logger}
	ctx := context.WithoutCancel(r.Context())

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	mt, first, err := conn.ReadMessage()
	if err != nil {
		h.logger.Error(ctx, "ws_auth_read_failed", "Client sent no auth message", err, nil)
		p.sendAuthError("authentication timeout: send an auth message first")
		return
	}
	if mt != websocket.TextMessage {
		p.sendAuthError("auth message must be in text format")
		return
	}

	claims, err := jwt.ValidateWSAuth(first, h.jwtMgr, role)
	if err != nil {
		h.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, map[string]any{"role": role})
		p.sendAuthError("authentication failed: invalid token")
		return
	}
	actorID := claims.ActorID()
	ctx = logger.WithActorID(ctx, actorID)

	if err := p.writeJSON(map[string]any{
		"type":      "auth_success",
		"actor_id":  actorID,
		"role":      role,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		h.logger.Error(ctx, "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}
	h.logger.Info(ctx, "ws_connected", "Actor socket connected", map[string]any{"role": role})

	handle, closeSession := start(ctx, p, actorID)
	defer closeSession()

	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go p.pingLoop(ctx, stopPing)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error(ctx, "ws_unexpected_close", "Socket closed unexpectedly", err, nil)
			} else {
				h.logger.Info(ctx, "ws_connection_closed", "Socket closed", nil)
			}
			p.wsWriteClose(websocket.CloseNormalClosure, "bye")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))

		var msg contracts.WSInbound
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Type == "" {
			p.sendError("", contracts.CodeBadMessage, "message must be {\"type\": ..., \"data\": ...}")
			continue
		}

		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		err = handle(cmdCtx, msg)
		cancel()
		if err != nil {
			h.logger.Debug(ctx, "ws_command_failed", "Socket command failed", map[string]any{
				"command": msg.Type,
				"reason":  err.Error(),
			})
			p.sendCommandError(msg.Type, err)
		}
	}
}

// resume re-attaches to an in-flight ride and sends the initial snapshot.
func (h *Host) resume(
	ctx context.Context,
	p *peer,
	resume func(context.Context) (*ride.Record, error),
	snapshot func() lifecycle.Snapshot,
) {
	resumeCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	record, err := resume(resumeCtx)
	if err != nil {
		h.logger.Error(ctx, "session_resume_failed", "Failed to look up active ride", err, nil)
	}
	p.sendSnapshot(snapshot(), record)
}
