package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/recap/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin stores a session token in the keyring.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	store, err := r.credentials()
	if err != nil {
		return err
	}

	tok := &oauth2.Token{
		AccessToken:  cmd.String("token"),
		RefreshToken: cmd.String("refresh-token"),
		TokenType:    "Bearer",
	}
	if d := cmd.Duration("expires-in"); d > 0 {
		tok.Expiry = r.now().Add(d)
	}

	if err := store.Save(tok); err != nil {
		return err
	}

	r.logger.Info("session credential stored")
	return r.writePlain("✓ Signed in\n")
}

// AuthLogout removes the stored session token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.credentials()
	if err != nil {
		return err
	}

	if err := store.Clear(); err != nil {
		return err
	}

	r.logger.Info("session credential removed")
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports whether a credential is stored and whether the API is reachable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")
	r.writePlainHeader("recap status")

	if err := r.api.Health(ctx); err != nil {
		r.writePlain("Service:        ✗ %v\n", err)
	} else {
		r.writePlain("Service:        ✓ %s\n", r.config.API.BaseURL)
	}

	store, err := r.credentials()
	if err != nil {
		r.writePlain("Authentication: ✗ %v\n", err)
		return nil
	}

	tok, err := store.Load()
	switch {
	case err != nil:
		return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	case tok == nil:
		return r.writePlain("Authentication: ✗ Not signed in\n")
	case tok.Expiry.IsZero():
		return r.writePlain("Authentication: ✓ Signed in (no expiry)\n")
	case tok.Expiry.Before(r.now()):
		if tok.RefreshToken != "" {
			return r.writePlain("Authentication: ⚠ Token expired %s, will refresh\n", humanize.RelTime(tok.Expiry, r.now(), "ago", "from now"))
		}
		return r.writePlain("Authentication: ✗ Token expired %s\n", humanize.RelTime(tok.Expiry, r.now(), "ago", "from now"))
	default:
		return r.writePlain("Authentication: ✓ Signed in, expires %s\n", humanize.RelTime(tok.Expiry, r.now(), "ago", "from now"))
	}
}
