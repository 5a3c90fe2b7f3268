package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds the DSN from MYSQL_DSN, database.dsn or the database.* parts.
func MySQLDSN(cfg DatabaseConfig) string {
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		return dsn
	}
	if cfg.DSN != "" {
		return cfg.DSN
	}
	user := firstNonEmpty(os.Getenv("MYSQL_USER"), cfg.User)
	pass := firstNonEmpty(os.Getenv("MYSQL_PASS"), cfg.Password)
	host := firstNonEmpty(os.Getenv("MYSQL_HOST"), cfg.Host)
	port := firstNonEmpty(os.Getenv("MYSQL_PORT"), cfg.Port, "3306")
	name := firstNonEmpty(os.Getenv("MYSQL_DB"), cfg.Name)
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=Local&multiStatements=true", user, pass, host, port, name)
}

func gormLogLevel(level string) logger.LogLevel {
	if os.Getenv("GORM_LOG") == "off" {
		return logger.Silent
	}
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

func NewDB() (*gorm.DB, error) {
	cfg := App().Database

	gormLogger := logger.New(
		zap.NewStdLog(Logger.Named("gorm")),
		logger.Config{
			SlowThreshold: time.Second, // Slow SQL threshold
			LogLevel:      gormLogLevel(cfg.LogLevel),
			Colorful:      false,
		},
	)

	db, err := gorm.Open(mysql.Open(MySQLDSN(cfg)), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	return db, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
