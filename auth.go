package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brainmappy/brainmaps-go/pkg/brainmaps"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize access to Brainmaps and store the token",
		Long: `Runs the OAuth2 authorization flow in a browser using the client secret
from --client-secret, BRAINMAPS_CLIENT_SECRET, or auth.client_secret_file.
The resulting token is stored and reused by every other command.`,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	if resolvedCfg.ClientSecretFile == "" {
		return errors.New("login needs a client secret file: pass --client-secret or set auth.client_secret_file")
	}

	logger.Info("login started", "token_path", resolvedCfg.TokenPath)

	opts := sessionOptions(resolvedCfg, logger)
	opts.IgnoreStored = true

	if _, err := brainmaps.AcquireCredentials(cmd.Context(), opts); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	logger.Info("login successful", "token_path", resolvedCfg.TokenPath)
	statusf("Login successful. Token stored at %s\n", resolvedCfg.TokenPath)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := brainmaps.Logout(resolvedCfg.TokenPath, logger); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}
