package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suteetoe/storefront/internal/model"
	"github.com/suteetoe/storefront/internal/provisioning"
	"github.com/suteetoe/storefront/pkg/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			if _, err := database.InitDB(&a.cfg.DB, a.log); err != nil {
				return err
			}
			if err := database.MigrateModels(model.All()...); err != nil {
				return err
			}
			a.log.Info("Database migrations applied")
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <slug>",
		Short: "Check that a store's artifacts exist on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			report := provisioning.NewVerifier(a.layout).Verify(args[0])
			if err := printJSON(report); err != nil {
				return err
			}
			if !report.Success {
				return fmt.Errorf("store %s failed verification", args[0])
			}
			return nil
		},
	}
}

func dedupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup <slug>",
		Short: "Remove byte-identical duplicate assets of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			p := a.cfg.Provisioning
			report := provisioning.NewReclaimer(a.layout, p.DedupMaxFiles, p.DedupMaxFileBytes).Reclaim(args[0], a.log)
			return printJSON(report)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
