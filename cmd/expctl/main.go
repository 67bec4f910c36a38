// Package main implements expctl, an operator CLI for the experiments API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/experimentd/internal/client"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	apiURL  string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "expctl",
		Short: "CLI for the experiments REST API",
		Long: `expctl reads and changes experiment definitions and responses through
the experimentd REST API.

Examples:
  # List definitions
  expctl list

  # Preview an update without sending it
  expctl update --dry-run coffee.json

  # Disable an experiment on another server
  expctl toggle "Coffee Survey" --disabled --api http://api:9090/api/experiments`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := os.Getenv("EXPCTL_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:9090/api/experiments"
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", defaultURL, "experiments API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output JSON instead of a table")

	root.AddCommand(
		newListCmd(opts),
		newResponsesCmd(opts),
		newAddCmd(opts),
		newUpdateCmd(opts),
		newSubmitCmd(opts),
		newToggleCmd(opts),
		newExportFormCmd(opts),
	)
	return root
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(client.Config{BaseURL: o.apiURL, Timeout: o.timeout}, logging.NewNop())
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, o.timeout)
}
