package feedsocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/pkg/logger"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialer_ReadsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"AAPL","candles":[]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"MSFT","candles":[]}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewDialer(logger.Nop(), WithPingInterval(0), WithHandshakeTimeout(2*time.Second))
	sock, err := d.Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer sock.Close()

	b, err := sock.ReadMessage(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"AAPL","candles":[]}`, string(b))

	b, err = sock.ReadMessage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(b), "MSFT")
}

func TestDialer_ServerCloseSurfacesError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	sock, err := NewDialer(nil).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	_, err = sock.ReadMessage(context.Background())
	assert.Error(t, err)
	_ = sock.Close()
	_ = sock.Close()
}

func TestDialer_ContextCancelUnblocksRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	sock, err := NewDialer(nil).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sock.ReadMessage(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialer_BadURL(t *testing.T) {
	_, err := NewDialer(nil).Dial(context.Background(), "ws://127.0.0.1:1/feed")
	assert.Error(t, err)
}
