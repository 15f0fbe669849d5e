// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/config"
)

// ErrUnknownEngine is returned when the configured database engine is not supported.
var ErrUnknownEngine = errors.New("unknown database engine")

// Create builds the Data Source Name from the configuration.
func Create(dbCfg *config.Config) string {
	switch dbCfg.DB.GormEngine {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
			dbCfg.DB.Host,
			dbCfg.DB.Port,
			dbCfg.DB.User,
			dbCfg.DB.Password,
			dbCfg.DB.Name,
			dbCfg.DB.Extras,
		)
	case "sqlite":
		return dbCfg.DB.Name
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.DB.User,
			dbCfg.DB.Password,
			dbCfg.DB.Host,
			dbCfg.DB.Port,
			dbCfg.DB.Name,
			dbCfg.DB.Extras,
		)
	}
}

// Dialector selects the gorm driver for the configured engine.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DB.GormEngine {
	case "mysql":
		return gormmysql.Open(Create(cfg)), nil
	case "postgres":
		return gormpostgres.Open(Create(cfg)), nil
	case "sqlite":
		return sqlite.Open(Create(cfg)), nil
	default:
		return nil, errors.Wrap(ErrUnknownEngine, cfg.DB.GormEngine)
	}
}
