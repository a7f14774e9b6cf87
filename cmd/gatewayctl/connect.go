package main

import (
	"errors"
	"fmt"

	"github.com/risa-org/gateway/config"
	"github.com/risa-org/gateway/gateway"
	"github.com/spf13/cobra"
)

func connectCmd(g *globals) *cobra.Command {
	var (
		gatewayURL string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in to a gateway and stream events",
		Long: `Connect opens a fresh session: it dials the gateway, logs in with the
token and prints every dispatched event until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.load(ctx, func(f *config.File) {
				if gatewayURL != "" {
					f.URL = gatewayURL
				}
				if token != "" {
					f.Token = token
				}
			})
			if err != nil {
				return err
			}
			defer e.close()

			if e.cfg.URL == "" {
				return errors.New("gateway url is required (--url or GATEWAY_URL)")
			}
			if e.cfg.Token == "" {
				return errors.New("token is required (--token or GATEWAY_TOKEN)")
			}

			c := e.client()
			if err := c.Open(ctx, e.cfg.URL, e.cfg.Token); err != nil {
				return fmt.Errorf("open %s: %w", e.cfg.URL, err)
			}
			e.log.Info().Str("session", c.SessionID()).Msg("connected")
			return e.run(c)
		},
	}

	cmd.Flags().StringVarP(&gatewayURL, "url", "u", "", "gateway URL (ws://, wss:// or tcp://)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "login token")
	return cmd
}

func resumeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the session saved in the checkpoint store",
		Long: `Resume reopens the session stored by a previous run without logging in
again. A checkpoint store must be configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.load(ctx, nil)
			if err != nil {
				return err
			}
			defer e.close()

			if e.store == nil {
				return errors.New("resume needs a checkpoint store (checkpoint.store)")
			}

			c := e.client()
			if err := c.Restore(ctx); err != nil {
				if errors.Is(err, gateway.ErrNoCheckpoint) {
					return fmt.Errorf("nothing to resume under key %q", e.cfg.Checkpoint.Key)
				}
				return err
			}
			e.log.Info().Str("session", c.SessionID()).Str("url", c.URL()).Msg("resuming")
			return e.run(c)
		},
	}
	return cmd
}
