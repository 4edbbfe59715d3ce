package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAuth(_ context.Context, token string) (string, string, error) {
	if token == "good" {
		return "user-1", "client", nil
	}
	return "", "", errors.New("bad token")
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(testAuth, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHub_AuthenticatesAndPushes(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"token": "good"}))
	f := readFrame(t, conn)
	assert.JSONEq(t, `"authenticated"`, string(f["type"]))

	require.Eventually(t, func() bool { return hub.IsUserConnected("user-1") }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendTypedMessage("user-1", "notification", map[string]int{"unread_count": 3}))
	f = readFrame(t, conn)
	assert.JSONEq(t, `"notification"`, string(f["type"]))
	assert.JSONEq(t, `{"unread_count":3}`, string(f["data"]))
}

func TestHub_RejectsBadToken(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"token": "nope"}))
	f := readFrame(t, conn)
	assert.JSONEq(t, `"error"`, string(f["type"]))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ConnectedCount())
}

func TestHub_PingAndHandler(t *testing.T) {
	hub, url := startHub(t)
	got := make(chan string, 1)
	hub.SetMessageHandler(func(_ context.Context, c *Client, msgType string, data json.RawMessage) error {
		got <- c.UserID + ":" + msgType + ":" + string(data)
		return nil
	})
	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(map[string]string{"token": "good"}))
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	f := readFrame(t, conn)
	assert.JSONEq(t, `"pong"`, string(f["type"]))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "typing", "data": map[string]bool{"on": true}}))
	select {
	case msg := <-got:
		assert.Equal(t, `user-1:typing:{"on":true}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestHub_SendToOfflineUserIsNoop(t *testing.T) {
	hub, _ := startHub(t)
	assert.NoError(t, hub.SendTypedMessage("nobody", "x", nil))
}

func TestHub_ShutdownReleasesClients(t *testing.T) {
	hub := NewHub(testAuth, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	// More live sockets than the unregister buffer holds.
	conns := make([]*websocket.Conn, 40)
	for i := range conns {
		conns[i] = dial(t, url)
		require.NoError(t, conns[i].WriteJSON(map[string]string{"token": "good"}))
		readFrame(t, conns[i])
	}
	require.Eventually(t, func() bool { return hub.ConnectedCount() == len(conns) }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	for _, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}

	// Leaving and joining never block on a stopped hub.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.leave(&Client{ID: "late"})
		}()
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("leave blocked after shutdown")
	}
	assert.False(t, hub.join(&Client{ID: "late"}))
}
