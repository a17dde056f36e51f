package main

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/tutordesk/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	migrateLog := logger.New(os.Getenv("APP_ENV")).Named("migrate")
	defer func() { _ = migrateLog.Sync() }()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		migrateLog.Fatal("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrations()
	if err != nil {
		migrateLog.Fatal("Migrations directory not found", zap.Error(err))
	}

	m, err := migrate.New("file://"+migrationsPath, pgxURL(dbURL))
	if err != nil {
		migrateLog.Fatal("Failed to open migrations", zap.Error(err))
	}
	defer func() {
		_, _ = m.Close()
	}()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "down":
		err = m.Steps(-1)
	case "reset":
		err = m.Down()
	default:
		cmd = "up"
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		migrateLog.Fatal("Migration failed", zap.String("direction", cmd), zap.Error(err))
	}

	version, dirty, _ := m.Version()
	migrateLog.Info("Migration finished", zap.String("direction", cmd), zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// pgxURL switches postgres:// URLs to the pgx/v5 migrate driver scheme.
func pgxURL(dbURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if len(dbURL) > len(prefix) && dbURL[:len(prefix)] == prefix {
			return "pgx5://" + dbURL[len(prefix):]
		}
	}
	return dbURL
}

// findMigrations walks up from the working directory and the executable looking for migrations/.
func findMigrations() (string, error) {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("no migrations directory in search path")
}
