package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/gregriff/vogo/relay/configs"
	"github.com/gregriff/vogo/relay/internal/registry"
	"github.com/gregriff/vogo/relay/internal/schemas"
	"github.com/gregriff/vogo/relay/internal/schemas/public"
	"github.com/gregriff/vogo/relay/internal/store"
	"github.com/gregriff/vogo/relay/internal/validation"
)

var createChannelCmd = &cobra.Command{
	Use:   "create-channel NAME",
	Short: "Add a channel to a running relay with --server, or to the relay's store",
	Long: `Add a channel to a running relay through POST /channels when --server is
given. Without it the channel is written straight to the configured store.
A relay serving that store keeps its own copy of the channel list and would
overwrite the change on its next edit, so the offline path refuses to run
while the local relay answers on the configured port.`,
	Args: cobra.ExactArgs(1),
	Run:  createChannel,
}

var listChannelsCmd = &cobra.Command{
	Use:   "list-channels",
	Short: "Print the channels in the relay's store, or live from a relay with --server",
	Args:  cobra.NoArgs,
	Run:   listChannels,
}

func init() {
	rootCmd.AddCommand(createChannelCmd)
	rootCmd.AddCommand(listChannelsCmd)

	createChannelCmd.Flags().Int("max-users", 0, "channel capacity (default: default-capacity from the config)")
	createChannelCmd.Flags().String("password", "", "passphrase required to join")
	createChannelCmd.Flags().String("server", "", "base url of a running relay, e.g. http://localhost:3001")
	listChannelsCmd.Flags().String("server", "", "base url of a running relay, e.g. http://localhost:3001")
}

func openRegistry(ctx context.Context, settings configs.Settings, logger *slog.Logger) (*registry.Registry, store.Store, error) {
	path, err := settings.StorePath()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(settings.Store.Driver, path)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.New(ctx, s, settings.DefaultCapacity, logger)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return reg, s, nil
}

func createChannel(cmd *cobra.Command, args []string) {
	settings, logger := loadSettings()
	maxUsers, _ := cmd.Flags().GetInt("max-users")
	password, _ := cmd.Flags().GetString("password")

	req := schemas.CreateChannelRequest{Name: args[0], MaxUsers: maxUsers, Password: password}
	if err := validation.CheckCreateChannel(req); err != nil {
		fatal(logger, "invalid channel", err)
	}

	if server, _ := cmd.Flags().GetString("server"); server != "" {
		ch, err := postChannel(cmd.Context(), server, req)
		if err != nil {
			fatal(logger, "error creating channel", err)
		}
		fmt.Printf("created channel %s (%s)\n", ch.ID, ch.Name)
		return
	}

	if local := localRelayURL(settings); relayServing(cmd.Context(), local) {
		fatal(logger, "refusing to write the store", fmt.Errorf("a relay is serving it at %s, rerun with --server %s", local, local))
	}

	reg, s, err := openRegistry(cmd.Context(), settings, logger)
	if err != nil {
		fatal(logger, "error opening channel store", err)
	}
	defer s.Close()

	ch, err := reg.Create(cmd.Context(), registry.CreateParams{Name: req.Name, MaxUsers: req.MaxUsers, Password: req.Password})
	if err != nil {
		fatal(logger, "error creating channel", err)
	}
	fmt.Printf("created channel %s (%s)\n", ch.ID, ch.Name)
}

// postChannel creates a channel on a running relay, which pushes it to every
// connected client.
func postChannel(ctx context.Context, server string, body schemas.CreateChannelRequest) (public.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return public.Channel{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/channels", bytes.NewReader(data))
	if err != nil {
		return public.Channel{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return public.Channel{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		var failure struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(res.Body).Decode(&failure); err != nil || failure.Error == "" {
			return public.Channel{}, fmt.Errorf("unexpected status %s", res.Status)
		}
		return public.Channel{}, fmt.Errorf("%s: %s", failure.Error, failure.Message)
	}

	var ch public.Channel
	if err := json.NewDecoder(res.Body).Decode(&ch); err != nil {
		return public.Channel{}, fmt.Errorf("error decoding channel: %w", err)
	}
	return ch, nil
}

// localRelayURL is where a relay started from the same config would answer.
func localRelayURL(settings configs.Settings) string {
	host := settings.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(settings.Port))
}

func relayServing(ctx context.Context, server string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/healthz", nil)
	if err != nil {
		return false
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	var health struct {
		OK bool `json:"ok"`
	}
	return res.StatusCode == http.StatusOK && json.NewDecoder(res.Body).Decode(&health) == nil && health.OK
}

func listChannels(cmd *cobra.Command, _ []string) {
	settings, logger := loadSettings()

	if server, _ := cmd.Flags().GetString("server"); server != "" {
		channels, err := fetchChannels(cmd.Context(), server)
		if err != nil {
			fatal(logger, "error fetching channels", err)
		}
		renderChannels(os.Stdout, channels)
		return
	}

	reg, s, err := openRegistry(cmd.Context(), settings, logger)
	if err != nil {
		fatal(logger, "error opening channel store", err)
	}
	defer s.Close()

	renderChannels(os.Stdout, lo.Map(reg.List(), func(ch schemas.Channel, _ int) public.Channel {
		return public.Channel{
			ID:          ch.ID,
			Name:        ch.Name,
			MaxUsers:    ch.Capacity(reg.DefaultCapacity()),
			HasPassword: ch.HasPassword,
		}
	}))
}

func fetchChannels(ctx context.Context, server string) ([]public.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/channels", nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}

	var channels []public.Channel
	if err := json.NewDecoder(res.Body).Decode(&channels); err != nil {
		return nil, fmt.Errorf("error decoding channels: %w", err)
	}
	return channels, nil
}

// renderChannels prints one row per channel with its occupants.
func renderChannels(w io.Writer, channels []public.Channel) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Online", "Password", "Users"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, ch := range channels {
		names := lo.Map(ch.OnlineUsers, func(u public.OnlineUser, _ int) string { return u.DisplayName })
		table.Append([]string{
			ch.ID,
			ch.Name,
			strconv.Itoa(ch.OnlineCount) + "/" + strconv.Itoa(ch.MaxUsers),
			lo.Ternary(ch.HasPassword, "yes", "no"),
			strings.Join(names, ", "),
		})
	}
	table.Render()
}
