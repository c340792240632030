package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/general/contracts"
	"hailo/internal/software/lifecycle"
)

// Inbound command types.
const (
	cmdRequestRide    = "request_ride"
	cmdCancel         = "cancel"
	cmdConfirmPickup  = "confirm_pickup"
	cmdConfirmDropoff = "confirm_dropoff"
	cmdGoOnline       = "go_online"
	cmdGoOffline      = "go_offline"
	cmdAccept         = "accept"
	cmdDecline        = "decline"
	cmdComplete       = "complete"
	cmdDismiss        = "dismiss"
	cmdPendingRides   = "pending_rides"
	cmdRefresh        = "refresh"
	cmdSnapshot       = "snapshot"
	cmdPing           = "ping"
)

var (
	errBadData        = errors.New("invalid command data")
	errUnknownCommand = errors.New("unknown command")
)

func decodeData(msg contracts.WSInbound, into any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: %s needs a data object", errBadData, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, into); err != nil {
		return fmt.Errorf("%w: %v", errBadData, err)
	}
	return nil
}

func decodeRideRef(msg contracts.WSInbound) (contracts.WSRideRef, error) {
	var ref contracts.WSRideRef
	if err := decodeData(msg, &ref); err != nil {
		return ref, err
	}
	if ref.RideID == "" {
		return ref, fmt.Errorf("%w: ride_id is required", errBadData)
	}
	return ref, nil
}

func (p *peer) pong() error {
	return p.writeJSON(map[string]any{
		"type":    contracts.WSTypePong,
		"sent_at": time.Now().UTC(),
	})
}

// riderCommands dispatches rider socket frames onto the rider session.
func (h *Host) riderCommands(p *peer, s *lifecycle.RiderSession) commandFunc {
	reply := func(record *ride.Record, err error) error {
		if err != nil {
			return err
		}
		p.sendSnapshot(s.Snapshot(), record)
		return nil
	}

	return func(ctx context.Context, msg contracts.WSInbound) error {
		switch msg.Type {
		case cmdRequestRide:
			var req contracts.WSRequestRide
			if err := decodeData(msg, &req); err != nil {
				return err
			}
			return reply(s.RequestRide(ctx, lifecycle.RideRequest{
				Pickup:        req.Pickup,
				Destination:   req.Destination,
				RiderLocation: req.RiderLocation,
			}))
		case cmdCancel:
			return reply(s.Cancel(ctx))
		case cmdConfirmPickup:
			return reply(s.ConfirmPickup(ctx))
		case cmdConfirmDropoff:
			return reply(s.ConfirmDropoff(ctx))
		case cmdRefresh, cmdSnapshot:
			return reply(s.Refresh(ctx))
		case cmdPing:
			return p.pong()
		default:
			return fmt.Errorf("%w: %s", errUnknownCommand, msg.Type)
		}
	}
}

// driverCommands dispatches driver socket frames onto the driver session.
func (h *Host) driverCommands(p *peer, s *lifecycle.DriverSession) commandFunc {
	reply := func(record *ride.Record, err error) error {
		if err != nil {
			return err
		}
		p.sendSnapshot(s.Snapshot(), record)
		return nil
	}
	state := func(err error) error { return reply(nil, err) }

	return func(ctx context.Context, msg contracts.WSInbound) error {
		switch msg.Type {
		case cmdGoOnline:
			return state(s.GoOnline(ctx))
		case cmdGoOffline:
			return state(s.GoOffline(ctx))
		case cmdAccept:
			ref, err := decodeRideRef(msg)
			if err != nil {
				return err
			}
			return reply(s.Accept(ctx, ref.RideID, ref.DriverLocation))
		case cmdDecline:
			ref, err := decodeRideRef(msg)
			if err != nil {
				return err
			}
			return s.Decline(ctx, ref.RideID)
		case cmdConfirmPickup:
			return reply(s.ConfirmPickup(ctx))
		case cmdComplete:
			return reply(s.Complete(ctx))
		case cmdDismiss:
			return state(s.Dismiss(ctx))
		case cmdRefresh, cmdSnapshot:
			return reply(s.Refresh(ctx))
		case cmdPendingRides:
			return s.RefreshPool(ctx)
		case cmdPing:
			return p.pong()
		default:
			return fmt.Errorf("%w: %s", errUnknownCommand, msg.Type)
		}
	}
}
