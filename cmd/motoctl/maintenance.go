package main

import (
	"fmt"
	"time"

	"mototaxi-backend/internal/cache"
	"mototaxi-backend/internal/db"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/services"

	"github.com/spf13/cobra"
)

func migrateCmd(open connector) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы БД",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, log, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return err
			}
			log.Info(logger.Entry{Action: "migrations_applied"})
			return nil
		},
	}
}

func expirePackagesCmd(open connector) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-packages",
		Short: "Пометить просроченные форфейты как expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, log, err := open(cmd.Context())
			if err != nil {
				return err
			}

			packages := services.NewPackageService(conn, cache.New(nil, 0), log)
			n, err := packages.ExpirePurchases(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired: %d\n", n)
			return nil
		},
	}
}
