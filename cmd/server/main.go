package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:  "lanpreview",
		Usage: "Serve a preview page over HTTP or WebSocket on loopback and the local network",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (default from PREVIEW_PORT or 8080)",
			},
			&cli.StringFlag{
				Name:  "interface",
				Usage: "LAN interface used for LAN URLs; empty picks the first usable one",
			},
			&cli.BoolFlag{
				Name:  "ipv4",
				Usage: "Listen on IPv4 only",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Page to serve: http, websocket or websocket-lan",
				Value: "http",
			},
			&cli.BoolFlag{
				Name:  "polling",
				Usage: "Reload the http page every two seconds",
			},
			&cli.DurationFlag{
				Name:  "push-interval",
				Usage: "Push a fresh number to the connected WebSocket client at this interval (0 disables)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := log.ParseLevel(cmd.String("log"))
			if err != nil {
				return ctx, err
			}
			log.SetLevel(level)
			return ctx, nil
		},
		Action: run,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
