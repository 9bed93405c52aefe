package handler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/coder/websocket"

	ws "github.com/dukerupert/planwise/internal/websocket"
)

// dialHub connects to a websocket endpoint and decodes incoming messages.
func dialHub(ctx context.Context, t *testing.T, url string) <-chan ws.Message {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	out := make(chan ws.Message, 4)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var m ws.Message
			if json.Unmarshal(data, &m) == nil {
				out <- m
			}
		}
	}()
	return out
}
