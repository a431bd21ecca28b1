package dashboard

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
)

func TestServer_ServesIndexAtRoot(t *testing.T) {
	s := NewServer(":0")
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}

func TestServer_EventsEndpointStreamsPublishedEvent(t *testing.T) {
	s := NewServer(":0")
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the server a moment to register the subscriber before publishing.
	time.Sleep(20 * time.Millisecond)
	s.Publish("threat-detected", map[string]any{"filename": "evil.exe"})

	var evt Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	require.Equal(t, "threat-detected", evt.Type)
}
