package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// TestErrorMessages tests that typed errors carry their details and survive wrapping
func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{"configuration", &ConfigurationError{Field: "MaxThreads", Msg: "must be greater than 0"}, []string{"MaxThreads", "greater than 0"}},
		{"scheme", &InvalidSchemeError{Expected: "tcp", Actual: "http"}, []string{"'tcp'", "'http'"}},
		{"argument", &InvalidArgumentError{Arg: "host", Msg: "must not be empty"}, []string{"host", "empty"}},
		{"exhausted", &PoolExhaustedError{NodeID: "n1:6666", Reason: ReasonPerNodeCap, Waited: 5 * time.Second}, []string{"n1:6666", "5s", string(ReasonPerNodeCap)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, c := range tt.contains {
				if !strings.Contains(tt.err.Error(), c) {
					t.Errorf("%q does not contain %q", tt.err, c)
				}
			}
		})
	}

	wrapped := fmt.Errorf("checkout: %w", &PoolExhaustedError{NodeID: "n1", Reason: ReasonGlobalCap})
	var exhausted *PoolExhaustedError
	if !errors.As(wrapped, &exhausted) || exhausted.Reason != ReasonGlobalCap {
		t.Errorf("errors.As() did not find PoolExhaustedError in %v", wrapped)
	}
}

// TestMessageTypeJSON tests the readable JSON form of message types
func TestMessageTypeJSON(t *testing.T) {
	data, err := json.Marshal(NewGetRequest("users", "alice"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), MsgTKVGet.String()) {
		t.Errorf("JSON %s does not contain the type name %s", data, MsgTKVGet)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.MsgType != MsgTKVGet || msg.Store != "users" || msg.Key != "alice" {
		t.Errorf("Unmarshal() = %+v", msg)
	}

	var bad MessageType
	if err := json.Unmarshal([]byte(`"nope"`), &bad); err == nil {
		t.Errorf("expected error for unknown message type")
	}
}

// TestParseLogLevel tests level parsing
func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("ParseLogLevel(%s) error = %v", level, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
	if err := InitLoggers("verbose"); err == nil {
		t.Errorf("InitLoggers() accepted an unknown level")
	}
}
