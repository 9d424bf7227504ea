package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telegram", topics.Telegram("knx"), "knxgw/telegram/knx"},
		{"group write", topics.GroupWrite("knx"), "knxgw/command/knx/group_write"},
		{"group read", topics.GroupRead("knx"), "knxgw/command/knx/group_read"},
		{"group response", topics.GroupResponse("knx"), "knxgw/command/knx/group_response"},
		{"bridge status", topics.BridgeStatus("knx"), "knxgw/bridge/knx/status"},
		{"system status", topics.SystemStatus(), "knxgw/system/status"},
		{"all telegrams", topics.AllTelegrams(), "knxgw/telegram/+"},
		{"all bridge statuses", topics.AllBridgeStatuses(), "knxgw/bridge/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayload(t *testing.T) {
	payload := statusPayload("knx-gateway", "offline", "graceful_shutdown")

	var decoded map[string]string
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["status"] != "offline" {
		t.Errorf("status = %q, want %q", decoded["status"], "offline")
	}
	if decoded["client_id"] != "knx-gateway" {
		t.Errorf("client_id = %q, want %q", decoded["client_id"], "knx-gateway")
	}
	if decoded["reason"] != "graceful_shutdown" {
		t.Errorf("reason = %q, want %q", decoded["reason"], "graceful_shutdown")
	}
	if decoded["timestamp"] == "" {
		t.Error("timestamp missing")
	}

	online := statusPayload("knx-gateway", "online", "")
	if strings.Contains(online, "reason") {
		t.Errorf("online payload should not carry a reason: %s", online)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("a/b", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: got %v, want ErrInvalidQoS", err)
	}
	big := bytes.Repeat([]byte("x"), maxPayloadSize+1)
	if err := c.Publish("a/b", big, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversize payload: got %v, want ErrPublishFailed", err)
	}
	if err := c.Publish("a/b", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: got %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("a/b", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: got %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("a/b", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: got %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("a/b", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: got %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("failed subscribes must not be tracked, count = %d", c.SubscriptionCount())
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
