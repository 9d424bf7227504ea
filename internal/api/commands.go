package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/knx-gateway/internal/entity"
)

// WebSocket command operations. These mirror the REST surface so panel UIs
// can drive the whole gateway over a single connection.
const (
	OpInfo               = "knx/info"
	OpGroupMonitorInfo   = "knx/group_monitor_info"
	OpSubscribeTelegrams = "knx/subscribe_telegrams"
	OpCreateEntity       = "knx/create_entity"
	OpUpdateEntity       = "knx/update_entity"
	OpDeleteEntity       = "knx/delete_entity"
	OpGetEntityConfig    = "knx/get_entity_config"
	OpListEntities       = "knx/list_entities"
	OpCreateDevice       = "knx/create_device"
)

// commandTimeout bounds command execution so a wedged store cannot pin a
// WebSocket read pump forever.
const commandTimeout = 30 * time.Second

// mutatingOps lists operations that require the admin role.
var mutatingOps = map[string]bool{
	OpCreateEntity: true,
	OpUpdateEntity: true,
	OpDeleteEntity: true,
	OpCreateDevice: true,
}

type entityCommandPayload struct {
	Platform string         `json:"platform"`
	UniqueID string         `json:"unique_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

type createDevicePayload struct {
	Name   string `json:"name"`
	AreaID string `json:"area_id,omitempty"`
}

// handleCommand dispatches a command envelope and sends either a response
// with the operation's result or a structured error.
func (c *WSClient) handleCommand(msg WSMessage) {
	if msg.Operation == "" {
		c.sendError(msg.ID, Error{Code: ErrCodeBadRequest, Message: "operation is required"})
		return
	}
	if mutatingOps[msg.Operation] && (c.claims == nil || !c.claims.CanMutate()) {
		c.sendError(msg.ID, Error{Code: ErrCodeForbidden, Message: "admin role required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, cmdErr := c.server.dispatchCommand(ctx, c, msg.Operation, msg.Payload)
	if cmdErr != nil {
		c.sendError(msg.ID, *cmdErr)
		return
	}
	c.sendResponse(msg.ID, WSTypeResponse, result)
}

// dispatchCommand routes an operation to its handler.
func (s *Server) dispatchCommand(ctx context.Context, c *WSClient, op string, payload json.RawMessage) (any, *Error) {
	switch op {
	case OpInfo:
		return s.gatewayInfo(ctx), nil

	case OpGroupMonitorInfo:
		return s.groupMonitorInfo(), nil

	case OpSubscribeTelegrams:
		c.subscribe(ChannelTelegram)
		return map[string]any{"subscribed": ChannelTelegram}, nil

	case OpCreateEntity:
		var p entityCommandPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &Error{Code: ErrCodeBadRequest, Message: "invalid command payload"}
		}
		uniqueID, err := s.entities.CreateEntity(ctx, entity.Platform(p.Platform), p.Data)
		if err != nil {
			return nil, commandError(err)
		}
		rec, err := s.entities.GetEntityConfig(ctx, uniqueID)
		if err != nil {
			return nil, commandError(err)
		}
		return rec, nil

	case OpUpdateEntity:
		var p entityCommandPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &Error{Code: ErrCodeBadRequest, Message: "invalid command payload"}
		}
		rec, err := s.entities.UpdateEntity(ctx, entity.Platform(p.Platform), p.UniqueID, p.Data)
		if err != nil {
			return nil, commandError(err)
		}
		return rec, nil

	case OpDeleteEntity:
		var p entityCommandPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &Error{Code: ErrCodeBadRequest, Message: "invalid command payload"}
		}
		if err := s.entities.DeleteEntity(ctx, p.UniqueID); err != nil {
			return nil, commandError(err)
		}
		return map[string]any{"deleted": p.UniqueID}, nil

	case OpGetEntityConfig:
		var p entityCommandPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &Error{Code: ErrCodeBadRequest, Message: "invalid command payload"}
		}
		rec, err := s.entities.GetEntityConfig(ctx, p.UniqueID)
		if err != nil {
			return nil, commandError(err)
		}
		return rec, nil

	case OpListEntities:
		records, err := s.entities.ListEntities(ctx)
		if err != nil {
			return nil, commandError(err)
		}
		return map[string]any{"entities": records, "count": len(records)}, nil

	case OpCreateDevice:
		var p createDevicePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &Error{Code: ErrCodeBadRequest, Message: "invalid command payload"}
		}
		dev, err := s.devices.Create(ctx, p.Name, p.AreaID)
		if err != nil {
			return nil, commandError(err)
		}
		return dev, nil

	default:
		return nil, &Error{Code: ErrCodeBadRequest, Message: "unknown operation: " + op}
	}
}

// gatewayInfo summarises gateway status for dashboards.
func (s *Server) gatewayInfo(ctx context.Context) map[string]any {
	info := map[string]any{
		"version":   s.version,
		"bridge_id": s.knxCfg.BridgeID,
	}
	if s.mqtt != nil {
		info["bus_connected"] = s.mqtt.IsConnected()
	}
	if s.runtime != nil {
		info["live_entities"] = s.runtime.Count()
	}
	if records, err := s.entities.ListEntities(ctx); err == nil {
		info["entity_count"] = len(records)
	}
	if devices, err := s.devices.List(ctx); err == nil {
		info["device_count"] = len(devices)
	}
	return info
}

// groupMonitorInfo returns the recent telegram ring for the group monitor.
func (s *Server) groupMonitorInfo() map[string]any {
	if s.bus == nil {
		return map[string]any{"recent_telegrams": nil, "count": 0}
	}
	recent := s.bus.Recent()
	return map[string]any{"recent_telegrams": recent, "count": len(recent)}
}

// commandError converts a domain error into a wire error without an HTTP status.
func commandError(err error) *Error {
	e := classifyError(err)
	e.Status = 0
	return &e
}
