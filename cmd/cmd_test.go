package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/gregriff/vogo/relay/configs"
	server "github.com/gregriff/vogo/relay/internal"
	"github.com/gregriff/vogo/relay/internal/schemas"
	"github.com/gregriff/vogo/relay/internal/schemas/public"
	"github.com/gregriff/vogo/relay/internal/signaling"
)

var channels = []public.Channel{
	{
		ID: "general", Name: "General", MaxUsers: 6, OnlineCount: 2,
		OnlineUsers: []public.OnlineUser{{ConnectionID: "a", DisplayName: "alice"}, {ConnectionID: "b", DisplayName: "bob"}},
	},
	{ID: "vip", Name: "VIP", MaxUsers: 2, HasPassword: true, OnlineUsers: []public.OnlineUser{}},
}

func TestRenderChannels(t *testing.T) {
	var buf bytes.Buffer
	renderChannels(&buf, channels)

	out := buf.String()
	require.Contains(t, out, "general")
	require.Contains(t, out, "2/6")
	require.Contains(t, out, "alice, bob")
	require.Contains(t, out, "0/2")
	require.Contains(t, out, "yes")
}

func TestPrintPushesUntilNormalClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(signaling.Welcome{Type: signaling.TypeWelcome, ConnectionID: "c-1"})
		_ = conn.WriteJSON(map[string]any{"type": "peer-left", "channelId": "general", "connectionId": "x"})
		_ = conn.WriteJSON(signaling.Channels{Type: signaling.TypeChannels, Channels: channels})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var buf bytes.Buffer
	require.NoError(t, printPushes(conn, &buf))
	require.Contains(t, buf.String(), "connected as c-1")
	require.Contains(t, buf.String(), "alice, bob")
}

func newRelay(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	settings := configs.Settings{
		DefaultCapacity: 6,
		Store:           configs.StoreSettings{Driver: configs.StoreMemory},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.NewServer(ctx, settings, logger)
	require.NoError(t, err)

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = srv.Run(ctx)
	}()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		<-hubDone
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts
}

func TestPostChannelCreatesOnARunningRelay(t *testing.T) {
	req := require.New(t)
	srv, ts := newRelay(t)

	ch, err := postChannel(context.Background(), ts.URL+"/", schemas.CreateChannelRequest{Name: "From CLI", MaxUsers: 4, Password: "pw"})
	req.NoError(err)
	req.Equal("from-cli", ch.ID)
	req.Equal(4, ch.MaxUsers)
	req.True(ch.HasPassword)

	// the running registry owns the change, so later edits keep it
	stored, ok := srv.Registry.Get("from-cli")
	req.True(ok)
	req.Equal("From CLI", stored.Name)

	_, err = postChannel(context.Background(), ts.URL, schemas.CreateChannelRequest{Name: "   "})
	req.ErrorContains(err, "NAME_REQUIRED")
}

func TestRelayServing(t *testing.T) {
	_, ts := newRelay(t)
	require.True(t, relayServing(context.Background(), ts.URL))

	ts.Close()
	require.False(t, relayServing(context.Background(), ts.URL))
}

func TestLocalRelayURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "", want: "http://localhost:3001"},
		{host: "0.0.0.0", want: "http://localhost:3001"},
		{host: "::", want: "http://localhost:3001"},
		{host: "127.0.0.1", want: "http://127.0.0.1:3001"},
		{host: "::1", want: "http://[::1]:3001"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			require.Equal(t, tt.want, localRelayURL(configs.Settings{Host: tt.host, Port: 3001}))
		})
	}
}
