package main

import (
	"context"
	"fmt"

	"premunia_crm_backend/internal/comparator"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/prospects/service"
	"premunia_crm_backend/internal/search"
	"premunia_crm_backend/platform/metrics"

	"github.com/spf13/cobra"
)

func newProspectsCmd(e *env) *cobra.Command {
	prospectsCmd := &cobra.Command{
		Use:   "prospects",
		Short: "Prospect maintenance",
	}
	prospectsCmd.AddCommand(
		&cobra.Command{
			Use:   "rescore",
			Short: "Recompute score and segment for every prospect",
			Long: `Recompute score and segment for every prospect.

Run after a change to the scoring rules; rows whose score is unchanged are
left untouched.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withProspectService(cmd.Context(), e, nil, func(svc *service.Service) error {
					updated, err := svc.Rescore(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rescored %d prospect(s)\n", updated)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reindex",
			Short: "Rebuild the prospect search index from the database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if !e.cfg.IsSearchEnabled() {
					return fmt.Errorf("ELASTICSEARCH_URL is not configured")
				}
				index, err := search.NewIndex(e.cfg)
				if err != nil {
					return err
				}
				return withProspectService(cmd.Context(), e, index, func(svc *service.Service) error {
					indexed, err := svc.Reindex(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "indexed %d prospect(s)\n", indexed)
					return nil
				})
			},
		},
	)
	return prospectsCmd
}

func withProspectService(ctx context.Context, e *env, index search.ProspectIndex, fn func(*service.Service) error) error {
	pool, err := e.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if index == nil {
		index = search.Noop{}
	}
	bus := events.NewInMemoryBus(e.log)
	defer bus.Wait()

	svc := service.New(repository.New(pool), bus, index, comparator.New(e.cfg), metrics.New(), e.log)
	return fn(svc)
}
