// Package cli implements the studio terminal client using Cobra. Each
// subcommand drives the same orchestrator and concierge the HTTP service
// uses, against a single local surface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Bona Parks creative studio in the terminal",
	Long: `studio talks to the Bona Parks concierge and runs image and video
generation jobs from the command line.

Configuration is read from the environment (and an optional .env file),
exactly like the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		prefs, err := loadPreferences(flagPrefs)
		if err != nil {
			return err
		}
		return applyPreferences(cmd, prefs)
	},
}

var (
	flagLogLevel string
	flagOwner    string
	flagPrefs    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level written to stderr")
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", "guest", "profile owner for saved logos")
	rootCmd.PersistentFlags().StringVar(&flagPrefs, "prefs", defaultPrefsPath(), "preferences file")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
