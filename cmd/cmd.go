// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: table, csv or markdown",
		Value:   "table",
	}
}

// setupCommand prepares configuration and the local database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create configuration and initialize the local database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   defaultConfigPath,
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   defaultConfigPath,
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand manages the stored session credential
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the session credential",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Store a session token in the system keyring",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Aliases:  []string{"t"},
						Usage:    "Session access token",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "refresh-token",
						Usage: "Refresh token used when the access token expires",
					},
					&cli.DurationFlag{
						Name:  "expires-in",
						Usage: "Lifetime of the access token (0 means no expiry)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored session token",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show credential and service status",
				Action: r.AuthStatus,
			},
		},
	}
}

// tasksCommand lists tasks from the API or the local snapshot history
func tasksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect transcription tasks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tasks from the API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Filter by status (queued, processing, completed, failed, ...)",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Tasks per page",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					formatFlag(),
				},
				Action: r.TasksList,
			},
			{
				Name:  "show",
				Usage: "Show one task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TasksShow,
			},
			{
				Name:  "history",
				Usage: "List task snapshots recorded by 'recap watch --record'",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Filter by status",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
					&cli.DurationFlag{
						Name:  "prune",
						Usage: "Delete finished snapshots older than this before listing",
					},
					formatFlag(),
				},
				Action: r.TasksHistory,
			},
		},
	}
}

// notificationsCommand reads and acknowledges the notification feed
func notificationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notif"},
		Usage:   "Read the notification feed",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List notifications",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "unread",
						Aliases: []string{"u"},
						Usage:   "Only unread notifications",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Notifications per page",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "cached",
						Usage: "Read the local cache instead of the API",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					formatFlag(),
				},
				Action: r.NotificationsList,
			},
			{
				Name:  "read",
				Usage: "Mark a notification as read",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.NotificationsRead,
			},
			{
				Name:   "read-all",
				Usage:  "Mark every notification as read",
				Action: r.NotificationsReadAll,
			},
		},
	}
}

// watchCommand runs the live update channel headless
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow task updates live and print alerts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Persist task snapshots and the feed cache to the local database",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Serve /healthz and /metrics on the configured server address",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override the status server listen address",
			},
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (0 runs until interrupted)",
				Value: time.Duration(0),
			},
		},
		Action: r.Watch,
	}
}

// tuiCommand launches the interactive dashboard
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the live dashboard",
		Action: r.TUI,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the dashboard runs",
				Value: "./tmp/recap-tui.log",
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the recap REST API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
