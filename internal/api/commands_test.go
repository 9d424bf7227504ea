package api

import (
	"context"
	"encoding/json"
	"testing"
)

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshalling payload: %v", err)
	}
	return data
}

func TestDispatchCommand_EntityLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	client := &WSClient{subscriptions: make(map[string]struct{})}

	// knx/create_entity
	result, cmdErr := srv.dispatchCommand(ctx, client, OpCreateEntity, mustRaw(t, map[string]any{
		"platform": "switch",
		"data":     switchDoc("Kitchen"),
	}))
	if cmdErr != nil {
		t.Fatalf("create_entity error: %+v", cmdErr)
	}
	data := mustRaw(t, result)
	var created struct {
		UniqueID string `json:"unique_id"`
		Platform string `json:"platform"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decoding create result: %v", err)
	}
	if created.Platform != "switch" || created.UniqueID == "" {
		t.Fatalf("create result = %s", data)
	}

	// knx/list_entities
	result, cmdErr = srv.dispatchCommand(ctx, client, OpListEntities, nil)
	if cmdErr != nil {
		t.Fatalf("list_entities error: %+v", cmdErr)
	}
	listing, _ := result.(map[string]any)
	if listing["count"] != 1 {
		t.Errorf("count = %v, want 1", listing["count"])
	}

	// knx/get_entity_config
	_, cmdErr = srv.dispatchCommand(ctx, client, OpGetEntityConfig, mustRaw(t, map[string]any{
		"unique_id": created.UniqueID,
	}))
	if cmdErr != nil {
		t.Fatalf("get_entity_config error: %+v", cmdErr)
	}

	// knx/delete_entity
	_, cmdErr = srv.dispatchCommand(ctx, client, OpDeleteEntity, mustRaw(t, map[string]any{
		"unique_id": created.UniqueID,
	}))
	if cmdErr != nil {
		t.Fatalf("delete_entity error: %+v", cmdErr)
	}

	// Deleting again surfaces not_found over the wire.
	_, cmdErr = srv.dispatchCommand(ctx, client, OpDeleteEntity, mustRaw(t, map[string]any{
		"unique_id": created.UniqueID,
	}))
	if cmdErr == nil || cmdErr.Code != ErrCodeNotFound {
		t.Fatalf("second delete error = %+v, want %q", cmdErr, ErrCodeNotFound)
	}
}

func TestDispatchCommand_Info(t *testing.T) {
	srv, _ := newTestServer(t)
	client := &WSClient{subscriptions: make(map[string]struct{})}

	result, cmdErr := srv.dispatchCommand(context.Background(), client, OpInfo, nil)
	if cmdErr != nil {
		t.Fatalf("info error: %+v", cmdErr)
	}
	info, _ := result.(map[string]any)
	if info["bridge_id"] != "knx" {
		t.Errorf("bridge_id = %v, want knx", info["bridge_id"])
	}
	if info["version"] != "test" {
		t.Errorf("version = %v, want test", info["version"])
	}
}

func TestDispatchCommand_SubscribeTelegrams(t *testing.T) {
	srv, _ := newTestServer(t)
	client := &WSClient{subscriptions: make(map[string]struct{})}

	_, cmdErr := srv.dispatchCommand(context.Background(), client, OpSubscribeTelegrams, nil)
	if cmdErr != nil {
		t.Fatalf("subscribe_telegrams error: %+v", cmdErr)
	}
	if !client.isSubscribed(ChannelTelegram) {
		t.Error("client not subscribed to telegram channel")
	}
}

func TestDispatchCommand_CreateDevice(t *testing.T) {
	srv, _ := newTestServer(t)
	client := &WSClient{subscriptions: make(map[string]struct{})}

	result, cmdErr := srv.dispatchCommand(context.Background(), client, OpCreateDevice, mustRaw(t, map[string]any{
		"name": "Hall actuator",
	}))
	if cmdErr != nil {
		t.Fatalf("create_device error: %+v", cmdErr)
	}
	data := mustRaw(t, result)
	var dev struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &dev); err != nil {
		t.Fatalf("decoding device: %v", err)
	}
	if dev.ID == "" {
		t.Fatalf("device result = %s", data)
	}
}

func TestDispatchCommand_UnknownOperation(t *testing.T) {
	srv, _ := newTestServer(t)
	client := &WSClient{subscriptions: make(map[string]struct{})}

	_, cmdErr := srv.dispatchCommand(context.Background(), client, "knx/reboot", nil)
	if cmdErr == nil || cmdErr.Code != ErrCodeBadRequest {
		t.Fatalf("error = %+v, want %q", cmdErr, ErrCodeBadRequest)
	}
}

func TestMutatingOps(t *testing.T) {
	for _, op := range []string{OpCreateEntity, OpUpdateEntity, OpDeleteEntity, OpCreateDevice} {
		if !mutatingOps[op] {
			t.Errorf("%s should require the admin role", op)
		}
	}
	for _, op := range []string{OpInfo, OpListEntities, OpGetEntityConfig, OpGroupMonitorInfo, OpSubscribeTelegrams} {
		if mutatingOps[op] {
			t.Errorf("%s should not require the admin role", op)
		}
	}
}
