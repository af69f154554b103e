package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_contest_tables.sql
var createContestTablesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createContestTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS user_answers;
				DROP TABLE IF EXISTS contest_attempts;
				DROP TABLE IF EXISTS contest_terms;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS contests;
			`)
			return err
		},
	)
}
