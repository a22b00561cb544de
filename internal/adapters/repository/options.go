package repository

import (
	gormLogger "gorm.io/gorm/logger"
)

// Option configures a GormStore at Open.
type Option func(*GormStore)

// WithLogLevel sets the GORM logger level: "silent", "error", "warn" or
// "info". Unknown values keep the default.
func WithLogLevel(level string) Option {
	return func(s *GormStore) {
		switch level {
		case "silent":
			s.logger = gormLogger.Default.LogMode(gormLogger.Silent)
		case "error":
			s.logger = gormLogger.Default.LogMode(gormLogger.Error)
		case "warn":
			s.logger = gormLogger.Default.LogMode(gormLogger.Warn)
		case "info":
			s.logger = gormLogger.Default.LogMode(gormLogger.Info)
		}
	}
}

// WithGormLogger replaces the GORM logger.
func WithGormLogger(l gormLogger.Interface) Option {
	return func(s *GormStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutoMigrate toggles schema migration at Open.
func WithAutoMigrate(enabled bool) Option {
	return func(s *GormStore) {
		s.autoMigrate = enabled
	}
}
