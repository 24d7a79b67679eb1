package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

type MigrationManager struct {
	db      *sql.DB
	dialect Dialect
}

func NewMigrationManager(db *sql.DB, dialect Dialect) *MigrationManager {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &MigrationManager{db: db, dialect: dialect}
}

func (m *MigrationManager) dir() string {
	if m.dialect == DialectPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

func (m *MigrationManager) Initialize() error {
	if m.db == nil {
		return fmt.Errorf("migration manager has no database")
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(string(m.dialect)); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return nil
}

func (m *MigrationManager) Up() error {
	if err := goose.Up(m.db, m.dir()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Database migrations completed successfully")
	return nil
}

func (m *MigrationManager) Down() error {
	if err := goose.Down(m.db, m.dir()); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	log.Println("Database migration rolled back successfully")
	return nil
}

func (m *MigrationManager) Status() error {
	if err := goose.Status(m.db, m.dir()); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

func (m *MigrationManager) Version() (int64, error) {
	version, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get database version: %w", err)
	}
	return version, nil
}

func (m *MigrationManager) Reset() error {
	if err := goose.Reset(m.db, m.dir()); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	log.Println("Database reset completed successfully")
	return nil
}
