package db

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

type patchedLogger struct {
	zapgorm2.Logger
}

// ErrRecordNotFound will be handled in application logic, let's not forward this to zap/sentry
func (l *patchedLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err == gorm.ErrRecordNotFound {
		return
	}
	l.Logger.Trace(ctx, begin, fc, err)
}

// Options contains the connection parameters of the profile database
type Options struct {
	URI    string
	Logger *zap.Logger

	MaxOpenConns int // Defaults to 20
}

// NewLogger returns the gorm logger used for every connection
func NewLogger(logger *zap.Logger) gormlogger.Interface {
	return &patchedLogger{
		Logger: zapgorm2.Logger{
			ZapLogger:        logger,
			LogLevel:         gormlogger.Warn,
			SlowThreshold:    time.Second,
			SkipCallerLookup: false,
		},
	}
}

// New returns an instance for interacting with the PostgreSQL database
func New(option Options) (*gorm.DB, error) {
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.URI == "" {
		return nil, fmt.Errorf("empty URI is invalid")
	}
	if option.MaxOpenConns == 0 {
		option.MaxOpenConns = 20
	}
	return open(postgres.Open(option.URI), option)
}

func open(dialector gorm.Dialector, option Options) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewLogger(option.Logger),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Cannot connect to database")
	}
	pool, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "Cannot get the connection pool")
	}
	pool.SetMaxIdleConns(1)
	pool.SetMaxOpenConns(option.MaxOpenConns)
	pool.SetConnMaxLifetime(time.Hour)
	return db, nil
}
