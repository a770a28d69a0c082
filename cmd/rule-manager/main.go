// Command rule-manager inspects and edits the knowledge base from a terminal.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gastrodx/gastrodx/internal/app"
	"github.com/gastrodx/gastrodx/internal/config"
)

// opener yields the services for one command invocation and a release func.
type opener func(ctx context.Context) (*app.Services, func(), error)

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*app.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app.NewServices(store, cfg, logger), func() { _ = store.Close() }, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "rule-manager",
		Short:        "Manage diagnosis rules and inspect the symptom and disease catalog",
		SilenceUsage: true,
	}
	root.AddCommand(rulesCmd(open))
	root.AddCommand(diseasesCmd(open))
	root.AddCommand(symptomsCmd(open))
	return root
}

// withServices opens the store for the duration of fn.
func withServices(cmd *cobra.Command, open opener, fn func(ctx context.Context, svcs *app.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svcs, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, svcs)
}
