package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/gregriff/vogo/relay/internal/signaling"
)

var watchCmd = &cobra.Command{
	Use:   "watch URL",
	Short: "Connect to a relay's websocket (e.g. ws://localhost:3001/ws) and print every channel state push",
	Args:  cobra.ExactArgs(1),
	Run:   watch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watch(_ *cobra.Command, args []string) {
	_, logger := loadSettings()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(args[0], nil)
	if err != nil {
		fatal(logger, "error connecting to relay", err)
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := printPushes(conn, os.Stdout); err != nil {
		fatal(logger, "connection lost", err)
	}
}

// printPushes renders each channels message read from conn until it closes.
func printPushes(conn *websocket.Conn, w io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case signaling.TypeWelcome:
			var welcome signaling.Welcome
			if err := json.Unmarshal(data, &welcome); err == nil {
				fmt.Fprintf(w, "connected as %s\n", welcome.ConnectionID)
			}
		case signaling.TypeChannels:
			var push signaling.Channels
			if err := json.Unmarshal(data, &push); err != nil {
				continue
			}
			fmt.Fprintf(w, "\n%s\n", time.Now().Format(time.TimeOnly))
			renderChannels(w, push.Channels)
		}
	}
}
