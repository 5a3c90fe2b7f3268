package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"mes.GO/config"
	"mes.GO/migrations"
	"mes.GO/model/entity"
	systemEntity "mes.GO/model/entity/system"
	reportService "mes.GO/service/report"
)

var migrateSteps int

func newMigrator() (*migrate.Migrate, func(), error) {
	db, err := config.NewDB()
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	driver, err := migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	if err != nil {
		return nil, nil, err
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, nil, err
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return nil, nil, err
	}
	return m, func() { m.Close() }, nil
}

var migrateUpCmd = &cobra.Command{
	Use:   "migrate:up",
	Short: "Apply pending schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		m, closeFn, err := newMigrator()
		if err != nil {
			fmt.Printf("Migration setup failed: %v\n", err)
			exitFunc(1)
			return
		}
		defer closeFn()
		if migrateSteps > 0 {
			err = m.Steps(migrateSteps)
		} else {
			err = m.Up()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fmt.Printf("Migration failed: %v\n", err)
			exitFunc(1)
			return
		}
		v, dirty, _ := m.Version()
		fmt.Printf("Schema at version %d (dirty=%v)\n", v, dirty)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "migrate:down",
	Short: "Roll back schema migrations (one step unless --steps is given)",
	Run: func(cmd *cobra.Command, args []string) {
		m, closeFn, err := newMigrator()
		if err != nil {
			fmt.Printf("Migration setup failed: %v\n", err)
			exitFunc(1)
			return
		}
		defer closeFn()
		steps := migrateSteps
		if steps <= 0 {
			steps = 1
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fmt.Printf("Rollback failed: %v\n", err)
			exitFunc(1)
			return
		}
		fmt.Printf("Rolled back %d step(s)\n", steps)
	},
}

var migrateAutoCmd = &cobra.Command{
	Use:   "migrate:auto",
	Short: "Create or update tables from the entity definitions (development)",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			exitFunc(1)
			return
		}
		if err := entity.AutoMigrate(db); err != nil {
			fmt.Printf("Auto-migrate failed: %v\n", err)
			exitFunc(1)
			return
		}
		var n int64
		db.Model(&systemEntity.AutoApprovalRule{}).Count(&n)
		if n == 0 {
			rule := reportService.DefaultRule()
			db.Create(&rule)
		}
		fmt.Println("Schema up to date")
	},
}

func init() {
	migrateUpCmd.Flags().IntVar(&migrateSteps, "steps", 0, "apply only this many migrations")
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 0, "roll back this many migrations")
	rootCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateAutoCmd)
}
