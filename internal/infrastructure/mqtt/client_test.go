package mqtt

import (
	"errors"
	"strings"
	"testing"
)

// These tests cover the broker-independent surface: topic builders,
// input validation and payload construction. Connection behaviour is
// exercised against a live Mosquitto broker in deployment smoke tests.

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("ZWayVDev_zway_30-0-38"), "zway/state/ZWayVDev_zway_30-0-38"},
		{"system status", topics.SystemStatus(), "zway/system/status"},
		{"all device states", topics.AllDeviceStates(), "zway/state/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDeviceIDFromStateTopic(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		topic string
		want  string
	}{
		{"zway/state/ZWayVDev_zway_30-0-38", "ZWayVDev_zway_30-0-38"},
		{"zway/state/", ""},
		{"zway/system/status", ""},
		{"other/state/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := topics.DeviceIDFromStateTopic(tt.topic); got != tt.want {
				t.Errorf("DeviceIDFromStateTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	t.Run("empty topic", func(t *testing.T) {
		err := c.Publish("", []byte("x"), 1, false)
		if !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		err := c.Publish("zway/state/x", []byte("x"), 3, false)
		if !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("oversized payload", func(t *testing.T) {
		payload := make([]byte, maxPayloadSize+1)
		err := c.Publish("zway/state/x", payload, 1, false)
		if !errors.Is(err, ErrPublishFailed) {
			t.Errorf("error = %v, want ErrPublishFailed", err)
		}
	})
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	t.Run("empty topic", func(t *testing.T) {
		err := c.Subscribe("", 1, func(string, []byte) error { return nil })
		if !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		err := c.Subscribe("zway/state/+", 3, func(string, []byte) error { return nil })
		if !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("nil handler", func(t *testing.T) {
		err := c.Subscribe("zway/state/+", 1, nil)
		if !errors.Is(err, ErrSubscribeFailed) {
			t.Errorf("error = %v, want ErrSubscribeFailed", err)
		}
	})
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("zway-socket-bridge")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"zway-socket-bridge"`) {
		t.Errorf("online payload missing client_id: %s", online)
	}

	offline := buildOfflinePayload("zway-socket-bridge")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}
