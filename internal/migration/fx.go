package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/invobook/invobook/internal/config"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if !cfg.MigrateOnStart {
			return nil
		}
		// The embedded migrations are postgres SQL. Other dialects
		// (sqlite in tests) create their schema via AutoMigrate.
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
