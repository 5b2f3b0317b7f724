// Command movierec-cli manages a movierec account and its movie lists from the
// terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"movierec/internal/client"

	"github.com/spf13/cobra"
)

type globals struct {
	apiURL      string
	sessionPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "movierec-cli",
		Short:         "Keep a watchlist and record liked and disliked movies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAPI := os.Getenv("MOVIEREC_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&g.apiURL, "api", defaultAPI, "API base URL (env MOVIEREC_API)")
	root.PersistentFlags().StringVar(&g.sessionPath, "session", "", "session file (default: user config dir)")

	root.AddCommand(
		registerCmd(g),
		loginCmd(g),
		logoutCmd(g),
		whoamiCmd(g),
		listCmd(g),
		getCmd(g),
		existsCmd(g),
		addCmd(g),
		setStatusCmd(g),
		rmCmd(g),
		importCmd(g),
	)
	return root
}

func (g *globals) client() (*client.Client, error) {
	path := g.sessionPath
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return nil, fmt.Errorf("locate session file: %w", err)
		}
		path = p
	}
	return client.New(g.apiURL, client.NewFileSessionStore(path)), nil
}
