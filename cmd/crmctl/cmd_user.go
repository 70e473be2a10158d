package main

import (
	"fmt"
	"strings"

	"premunia_crm_backend/internal/auth/repository"
	"premunia_crm_backend/internal/auth/service"
	"premunia_crm_backend/internal/auth/transport"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/platform/httpkit"
	"premunia_crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newUserCmd(e *env) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}
	userCmd.AddCommand(newUserCreateCmd(e))
	return userCmd
}

func newUserCreateCmd(e *env) *cobra.Command {
	var req transport.CreateUserRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Long: `Create a staff account with a password.

The first admin of a fresh database is created this way; every later account
can be created from the admin API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.FirstName == "" {
				req.FirstName, _, _ = strings.Cut(req.Email, "@")
			}
			if req.LastName == "" {
				req.LastName = "Premunia"
			}
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}

			ctx := cmd.Context()
			pool, err := e.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := service.New(repository.New(pool), e.cfg, events.NewInMemoryBus(e.log), e.log)
			system := httpkit.NewIdentity(uuid.Nil, "crmctl", httpkit.RoleAdmin)
			user, err := svc.CreateUser(ctx, system, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.Role, "role", httpkit.RoleCommercial, "admin, manager, commercial or marketing")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name (defaults to the email local part)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
