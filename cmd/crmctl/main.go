// Command crmctl runs one-off maintenance tasks against the CRM database:
// migrations, staff accounts, prospect rescoring and search reindexing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/db"
	"premunia_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// env carries what every subcommand needs once config is loaded.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func (e *env) pool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Premunia CRM maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg
			e.log = logger.New(cfg.Env)
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(e),
		newUserCmd(e),
		newProspectsCmd(e),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&env{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
