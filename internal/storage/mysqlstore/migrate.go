package mysqlstore

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	migrateMysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func MigrateUp(db *sql.DB, dbName string, logger *log.Logger) error {
	m, err := prepareMigrations(db, dbName, logger)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}

	logger.Info("migrations applied successfully")
	return nil
}

func MigrateDown(db *sql.DB, dbName string, logger *log.Logger) error {
	m, err := prepareMigrations(db, dbName, logger)
	if err != nil {
		return err
	}

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate down")
	}

	logger.Info("migrations rolled back successfully")
	return nil
}

func prepareMigrations(db *sql.DB, dbName string, logger *log.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embedded migrations")
	}

	driver, err := migrateMysql.WithInstance(db, &migrateMysql.Config{DatabaseName: dbName})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migrate driver")
	}

	logger.WithField("database", dbName).Info("migrations started")

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migrations instance")
	}
	return m, nil
}
