package storage

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // PostgreSQL driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const postgresCreateTablesSQL = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		email TEXT NOT NULL UNIQUE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (age, name)
	);

	CREATE TABLE IF NOT EXISTS user_preferences (
		id TEXT PRIMARY KEY,
		email_updates BOOLEAN NOT NULL DEFAULT FALSE,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON UPDATE CASCADE ON DELETE CASCADE
	);
`

// NewPostgresStorage connects to PostgreSQL with the query-builder backend
// and creates the tables if needed.
func NewPostgresStorage(connString string) (*SQLStorage, error) {
	return openSQLStorage("postgres", driverPostgres, connString, postgresCreateTablesSQL, squirrel.Dollar)
}

// NewGormPostgresStorage connects to PostgreSQL with the gorm backend and
// migrates the schema. The connection uses the lib/pq driver.
func NewGormPostgresStorage(connString string) (*GormStorage, error) {
	return openGormStorage("postgres", driverPostgres, connString, func(db *sql.DB) gorm.Dialector {
		return postgres.New(postgres.Config{Conn: db})
	})
}
