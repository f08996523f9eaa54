package sqlitepersistence

import (
	"context"
	"database/sql"
)

// CreateSchema creates the schema elements required by the SQLite data-store.
//
// It is a no-op if the schema already exists.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS process_instance (
			app_key      TEXT NOT NULL,
			process_type TEXT NOT NULL,
			business_key TEXT NOT NULL,
			instance_id  TEXT NOT NULL,
			revision     INTEGER NOT NULL,
			terminal     INTEGER NOT NULL DEFAULT 0,
			media_type   TEXT NOT NULL,
			data         BLOB,

			PRIMARY KEY (app_key, process_type, business_key)
		)`,
	)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(
		ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS process_instance_id
			ON process_instance (app_key, instance_id)`,
	)

	return err
}

// DropSchema drops the schema elements required by the SQLite data-store.
func DropSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(
		ctx,
		`DROP TABLE IF EXISTS process_instance`,
	)

	return err
}
