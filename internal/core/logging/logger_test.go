package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	log.Logger = zerolog.New(&buf)
	Install()

	logger := Component("relay")
	logger.Info().Ctx(WithRoomID(context.Background(), 5)).Msg("started")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if cmp := logEntry["cmp"]; cmp != "relay" {
		t.Errorf("Component() cmp = %v, want %q", cmp, "relay")
	}
	if room := logEntry["room_id"]; room != float64(5) {
		t.Errorf("room_id = %v, want 5", room)
	}
	if msg := logEntry["message"]; msg != "started" {
		t.Errorf("message = %v, want %q", msg, "started")
	}
}
