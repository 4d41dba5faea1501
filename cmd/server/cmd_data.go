package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xfw5/Market-Research/internal/di"
	"github.com/xfw5/Market-Research/internal/modules/marketdata"
)

var importCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Import a market data seed into market.db",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schemas",
	RunE:  runMigrate,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the databases and upload them to the backup bucket",
	RunE:  runBackup,
}

func init() {
	rootCmd.AddCommand(importCmd, migrateCmd, backupCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	seed, err := marketdata.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	store := marketdata.NewStore(container.MarketDB.Conn(), "sqlite", nil, log)
	summary, err := store.Import(seed)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(summary)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	for _, db := range container.Databases() {
		fmt.Printf("%s: %s\n", db.Name(), db.Path())
	}
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if !cfg.Backup.Enabled() {
		return errors.New("BACKUP_S3_BUCKET is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Backup.Backup(ctx); err != nil {
		return err
	}

	backups, err := container.Backup.ListBackups(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(backups)
}
