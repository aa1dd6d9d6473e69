package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/mailpipe/cmd/app/commands"
	"github.com/allisson/mailpipe/internal/app"
	"github.com/allisson/mailpipe/internal/config"
)

func getDeliveryCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "clean-delivery-logs",
			Usage: "Delete delivery logs older than specified days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Delete delivery logs older than this many days",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many logs would be deleted without deleting",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deliveryLogUseCase, err := container.DeliveryLogUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanDeliveryLogs(
					ctx,
					deliveryLogUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "enqueue",
			Usage: "Publish a delivery request onto the queue topic",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "request-id",
					Aliases: []string{"r"},
					Usage:   "Request ID (generated when omitted)",
				},
				&cli.StringFlag{
					Name:    "user-id",
					Aliases: []string{"u"},
					Usage:   "User ID carried in the X-User-ID header",
				},
				&cli.StringFlag{
					Name:     "to",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Recipient email address",
				},
				&cli.StringFlag{
					Name:     "template",
					Aliases:  []string{"k"},
					Required: true,
					Usage:    "Template key (e.g., welcome_email)",
				},
				&cli.StringSliceFlag{
					Name:    "var",
					Aliases: []string{"v"},
					Usage:   "Template variable as key=value (repeatable)",
				},
				&cli.IntFlag{
					Name:    "priority",
					Aliases: []string{"p"},
					Usage:   "Optional priority (>= 1)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				publisher, err := container.RequestPublisher()
				if err != nil {
					return err
				}

				return commands.RunEnqueue(
					ctx,
					publisher,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.EnqueueInput{
						RequestID:   cmd.String("request-id"),
						UserID:      cmd.String("user-id"),
						Recipient:   cmd.String("to"),
						TemplateKey: cmd.String("template"),
						Variables:   cmd.StringSlice("var"),
						Priority:    int(cmd.Int("priority")),
					},
					cmd.String("format"),
				)
			},
		},
	}
}
