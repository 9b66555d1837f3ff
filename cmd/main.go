package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/credential"
	"github.com/desertthunder/recap/internal/services"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := defaultConfigPath
	if p := os.Getenv("RECAP_CONFIG"); p != "" {
		configPath = p
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	apiOpts := services.APIServiceOpts{
		BaseURL:   config.API.BaseURL,
		Timeout:   config.API.Timeout,
		RateLimit: config.API.RateLimit,
	}

	creds, err := credential.Open(config.Credentials)
	if err != nil {
		logger.Warn("credential store unavailable", "error", err)
	} else {
		apiOpts.Credentials = creds
	}

	var session credential.Source
	if token := os.Getenv("RECAP_TOKEN"); token != "" {
		session = credential.StaticSource{Token: &oauth2.Token{AccessToken: token, TokenType: "Bearer"}}
		apiOpts.Credentials = session
	}

	runner := NewRunner(RunnerOpts{
		Config:      config,
		ConfigPath:  configPath,
		API:         services.NewAPIService(apiOpts),
		Credentials: creds,
		Session:     session,
		Logger:      logger,
	})

	app := &cli.Command{
		Name:     "recap",
		Usage:    "Follow transcription tasks and notifications live",
		Version:  "0.1.0",
		Commands: runner.register(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
