package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emrgen/revisor"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(migrateCmd())
	dbCmd.AddCommand(tablesCmd())
	dbCmd.AddCommand(truncateCmd())
	dbCmd.AddCommand(dropCmd())
}

// openDB connects to DATABASE_URL when set, otherwise to a local sqlite
// file.
func openDB() (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	path := os.Getenv("REVISOR_SQLITE_PATH")
	if path == "" {
		path = "./.tmp/revisor.db"
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return db, nil
}

// newManager builds a manager with the demo pages entity registered.
func newManager() (*revisor.Manager, *revisor.Entity, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	m := revisor.New(db, revisor.DefaultConfig())
	pages := revisor.NewEntity("pages").WithSoftDeletes()
	m.Register(pages)
	return m, pages, nil
}

func pagesColumns(t *revisor.TableBuilder, rc revisor.Context) {
	t.String("title")
	t.Text("content").Nullable()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create the draft, version and published tables",
		Run: func(cmd *cobra.Command, args []string) {
			m, pages, err := newManager()
			if err != nil {
				logrus.Fatalf("connecting to database: %v", err)
			}
			if err := m.CreateSchemas(context.Background(), pages, pagesColumns); err != nil {
				logrus.Fatalf("creating schemas: %v", err)
			}
			fmt.Println("schemas created")
		},
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "list the managed tables and whether they exist",
		Run: func(cmd *cobra.Command, args []string) {
			m, pages, err := newManager()
			if err != nil {
				logrus.Fatalf("connecting to database: %v", err)
			}
			ctx := context.Background()
			for _, table := range m.Config().AllTablesFor(pages.Base()) {
				fmt.Printf("%s\t%v\n", table, m.Store().HasTable(ctx, table))
			}
		},
	}
}

func truncateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "truncate",
		Short: "clear the draft, version and published tables",
		Run: func(cmd *cobra.Command, args []string) {
			m, pages, err := newManager()
			if err != nil {
				logrus.Fatalf("connecting to database: %v", err)
			}
			if err := m.TruncateAll(context.Background(), pages.Base()); err != nil {
				logrus.Fatalf("truncating tables: %v", err)
			}
			fmt.Println("tables truncated")
		},
	}
}

func dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "drop the draft, version and published tables",
		Run: func(cmd *cobra.Command, args []string) {
			m, pages, err := newManager()
			if err != nil {
				logrus.Fatalf("connecting to database: %v", err)
			}
			if err := m.DropSchemasIfExists(context.Background(), pages.Base()); err != nil {
				logrus.Fatalf("dropping schemas: %v", err)
			}
			fmt.Println("schemas dropped")
		},
	}
}
