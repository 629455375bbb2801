package db

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/models"
)

var DB *gorm.DB

func ConnectDatabase(driver, dsn string) error {
	var err error

	DB, err = Open(driver, dsn)

	if err != nil {
		return err
	}

	return nil
}

// Open connects to the database behind driver ("postgres", "mysql" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		cfg, err := mysqlConfig(dsn)
		if err != nil {
			return nil, err
		}
		dialector = mysql.New(mysql.Config{DSNConfig: cfg})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logging.Gorm(),
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}

		// One connection keeps an in-memory database alive and serialises writers.
		sqlDB.SetMaxOpenConns(1)

		if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}

	return conn, nil
}

// mysqlConfig parses a go-sql-driver DSN. Timestamps are scanned into
// time.Time and read as UTC whatever the DSN says.
func mysqlConfig(dsn string) (*gomysql.Config, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql DSN: %w", err)
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return cfg, nil
}

func MigrateDatabase() error {
	return Migrate(DB)
}

func Migrate(conn *gorm.DB) error {
	models := []interface{}{
		&models.User{},
		&models.TrustScore{},
		&models.RiskArea{},
		&models.Alert{},
		&models.AlertValidation{},
		&models.Endorsement{},
		&models.SocialAccount{},
		&models.SocialToken{},
	}

	for _, model := range models {
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}

	return nil
}
