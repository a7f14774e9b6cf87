package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "gatewayctl",
		Short: "Connect to a real-time gateway and keep the session alive",
		Long: `gatewayctl logs in to a gateway, prints dispatched events and keeps
the session alive across redirects and dropped connections.

Settings come from a TOML file, a .env file and GATEWAY_* variables,
flags override all of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&g.envFile, "env-file", ".env", "env file loaded before GATEWAY_* variables")
	flags.StringVar(&g.metricsAddr, "metrics-addr", "", "serve /metrics on this address, e.g. :9090")
	flags.BoolVar(&g.debug, "debug", false, "print gateway diagnostics")

	rootCmd.AddCommand(
		connectCmd(g),
		resumeCmd(g),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
