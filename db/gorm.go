package db

import (
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tracklist/config"
	"tracklist/logger"
)

// GormDB 是 GORM 数据库连接实例
var GormDB *gorm.DB

// MySQLDSN builds the DSN for the mysql driver. Timestamps are parsed into
// time.Time and stored in UTC.
func MySQLDSN(cfg *config.Config) string {
	dc := mysqldrv.NewConfig()
	dc.User = cfg.DBUser
	dc.Passwd = cfg.DBPassword
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort)
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// dialector picks the GORM driver for cfg.DBDriver.
func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return mysql.Open(MySQLDSN(cfg)), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("no GORM dialector for driver %q", cfg.DBDriver)
	}
}

// OpenGorm opens a GORM connection for the configured driver without
// touching the package-level GormDB.
func OpenGorm(cfg *config.Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(d, &gorm.Config{
		Logger:                                   newGormLogger(cfg.DBLogLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// One writer at a time avoids "database is locked" under concurrent requests.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return gdb, nil
}

// ConnectGormDB 建立 GORM 数据库连接并保存到 GormDB
func ConnectGormDB(cfg *config.Config) error {
	gdb, err := OpenGorm(cfg)
	if err != nil {
		return err
	}
	GormDB = gdb

	logger.Info("database connected",
		logger.String("driver", cfg.DBDriver),
		logger.String("name", databaseName(cfg)))
	return nil
}

func databaseName(cfg *config.Config) string {
	if cfg.DBDriver == config.DriverSQLite {
		return cfg.SQLitePath
	}
	return cfg.DBName
}

// CloseGormDB 关闭 GORM 数据库连接
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// AutoMigrateModels 自动迁移指定的模型
func AutoMigrateModels(models ...interface{}) error {
	if GormDB == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	if err := GormDB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}

	logger.Info("models migrated", logger.Int("count", len(models)))
	return nil
}

// gormWriter routes GORM's printf-style output into the structured logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.L().Sugar().Infof(strings.TrimSpace(format), args...)
}

func newGormLogger(level string) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch strings.ToLower(level) {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "info":
		lvl = gormlogger.Info
	default:
		lvl = gormlogger.Warn
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
