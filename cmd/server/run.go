package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/lanpreview/internal/server"
)

const (
	clientPath    = "/"
	websocketPath = "/websocket"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	urlStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func configFromCommand(cmd *cli.Command) (server.Config, error) {
	cfg := server.NewConfigFromEnv()

	if cmd.IsSet("port") {
		port := cmd.Int("port")
		if port < 1 || port > 65535 {
			return cfg, fmt.Errorf("invalid --port %d", port)
		}
		cfg.Port = uint16(port)
	}
	if cmd.IsSet("interface") {
		cfg.InterfaceName = cmd.String("interface")
	}
	if cmd.IsSet("ipv4") {
		cfg.ForceIPv4 = cmd.Bool("ipv4")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}

	logger := log.Default().WithPrefix("preview")
	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}

	scheme, err := setUpMode(srv, cmd.String("mode"), cmd.Bool("polling"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	states, cancel := srv.Listening().Subscribe()
	defer cancel()
	go watchListening(srv, scheme, states)

	if interval := cmd.Duration("push-interval"); interval > 0 && scheme == "ws" {
		go pushNumbers(ctx, srv, interval, logger)
	}

	return srv.Run(ctx)
}

// setUpMode registers the routes for mode and returns the scheme whose URLs
// should be shown.
func setUpMode(srv *server.Server, mode string, polling bool) (string, error) {
	switch strings.ToLower(mode) {
	case "http":
		srv.SetUpHTTPDemo(clientPath, polling)
		return "http", nil
	case "websocket", "websocket-local":
		srv.SetUpWebSocketDemo(clientPath, websocketPath, server.Loopback, server.EchoCallbacks())
		return "ws", nil
	case "websocket-lan", "websocket-wifi":
		srv.SetUpWebSocketDemo(clientPath, websocketPath, server.LAN, server.EchoCallbacks())
		return "ws", nil
	default:
		return "", fmt.Errorf("unknown --mode %q", mode)
	}
}

func watchListening(srv *server.Server, scheme string, states <-chan bool) {
	for listening := range states {
		if !listening {
			fmt.Println(mutedStyle.Render("Not Running..."))
			continue
		}
		fmt.Println(renderURLs(srv, scheme))
	}
}

func renderURLs(srv *server.Server, scheme string) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Listening on port %d", srv.Port()))}

	for _, mode := range []server.Mode{server.Loopback, server.LAN} {
		page, err := srv.HTTPURL(mode)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%-8s %s", mode, mutedStyle.Render(describeURLError(err))))
			continue
		}
		lines = append(lines, fmt.Sprintf("%-8s %s", mode, urlStyle.Render(page)))

		if scheme == "ws" {
			if ws, err := srv.WebSocketURL(mode); err == nil {
				lines = append(lines, fmt.Sprintf("%-8s %s", "", urlStyle.Render(ws)))
			}
		}
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func describeURLError(err error) string {
	if errors.Is(err, server.ErrLANUnavailable) {
		return "no LAN address"
	}
	return err.Error()
}

func pushNumbers(ctx context.Context, srv *server.Server, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.SendText(server.RandomNumberFragment()); err != nil {
				logger.Warn("push failed", "err", err)
			}
		}
	}
}
