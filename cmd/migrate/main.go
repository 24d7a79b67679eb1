package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"phimgg-importer/storage"
)

func main() {
	var (
		dataPath    = flag.String("data", envOr("DATA_PATH", "./data"), "Path to database directory")
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres URL; overrides -data")
		command     = flag.String("cmd", "up", "Migration command: up, down, status, version, reset")
	)
	flag.Parse()

	store := storage.New(storage.Config{DataPath: *dataPath, DatabaseURL: *databaseURL})
	// connect only; migrations run below on request
	if _, err := store.GetDB(); err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	// Execute command
	switch *command {
	case "up":
		if err := store.RunMigrations(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		if err := store.RollbackMigration(); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		fmt.Println("Migration rolled back successfully")

	case "status":
		if err := store.MigrationStatus(); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}

	case "version":
		version, err := store.GetDatabaseVersion()
		if err != nil {
			log.Fatalf("Failed to get database version: %v", err)
		}
		fmt.Printf("Database version: %d (%s)\n", version, store.Dialect())

	case "reset":
		if err := store.ResetDatabase(); err != nil {
			log.Fatalf("Failed to reset database: %v", err)
		}
		fmt.Println("Database reset completed successfully")

	default:
		fmt.Printf("Unknown command: %s\n", *command)
		fmt.Println("Available commands: up, down, status, version, reset")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
