package storage

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteCreateTablesSQL = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		email TEXT NOT NULL UNIQUE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (age, name)
	);

	CREATE TABLE IF NOT EXISTS user_preferences (
		id TEXT PRIMARY KEY,
		email_updates BOOLEAN NOT NULL DEFAULT FALSE,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON UPDATE CASCADE ON DELETE CASCADE
	);
`

// NewSQLiteStorage opens the SQLite database at dbPath with the query-builder
// backend and creates the tables if needed.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	return openSQLStorage("sqlite", driverSQLite, sqliteDSN(dbPath), sqliteCreateTablesSQL, squirrel.Question)
}

// NewGormSQLiteStorage opens the SQLite database at dbPath with the gorm backend
// and migrates the schema.
func NewGormSQLiteStorage(dbPath string) (*GormStorage, error) {
	return openGormStorage("sqlite", driverSQLite, sqliteDSN(dbPath), func(db *sql.DB) gorm.Dialector {
		return sqlite.New(sqlite.Config{DriverName: driverSQLite, Conn: db})
	})
}
