package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jmehdipour/notifications-delivery/internal/config"
	"github.com/jmehdipour/notifications-delivery/internal/db"
)

var withClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE the journal table)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		// the MySQL DSN must allow multiStatements
		sqlBytes, err := readMigration(filepath.Join("migrations", "001_init.sql"))
		if err != nil {
			return err
		}
		if _, err := sqlDB.Exec(sqlBytes); err != nil {
			return fmt.Errorf("exec mysql migration: %w", err)
		}
		log.Println(">> MySQL migration complete")

		if !withClickHouse {
			return nil
		}

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer chDB.Close()

		chSQL, err := readMigration(filepath.Join("migrations", "clickhouse", "001_deliveries.sql"))
		if err != nil {
			return err
		}
		if err := execEach(chDB, chSQL); err != nil {
			return fmt.Errorf("exec clickhouse migration: %w", err)
		}
		log.Println(">> ClickHouse migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&withClickHouse, "clickhouse", false, "also create the ClickHouse reporting tables")
}

func readMigration(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read migration file %s: %w", path, err)
	}
	return string(b), nil
}

// execEach runs statements one by one; the ClickHouse driver rejects multi-statement queries.
func execEach(dbx *sqlx.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := dbx.Exec(stmt); err != nil {
			return fmt.Errorf("%q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
