package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTTL covers the redelivery window of the billing provider
const DefaultTTL = time.Hour * 72

const keyPrefix = "billing:event:"

// Options contains the dependencies of Ledger
type Options struct {
	Redis  redis.UniversalClient
	Logger *zap.Logger
	TTL    time.Duration // Defaults to DefaultTTL
}

// Ledger remembers applied webhook event ids in Redis
type Ledger struct {
	Options
}

// New returns a Ledger backed by Redis
func New(option Options) (*Ledger, error) {
	if option.Redis == nil {
		return nil, fmt.Errorf("nil Redis is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.TTL <= 0 {
		option.TTL = DefaultTTL
	}
	return &Ledger{
		Options: option,
	}, nil
}

func key(eventID string) string {
	return keyPrefix + eventID
}

// Seen reports whether eventID was marked within the TTL
func (l *Ledger) Seen(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := l.Redis.Exists(key(eventID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "Cannot check event in Redis")
	}
	return n > 0, nil
}

// Mark records eventID as applied
func (l *Ledger) Mark(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.Redis.Set(key(eventID), time.Now().UTC().Format(time.RFC3339), l.TTL).Err(); err != nil {
		return errors.Wrap(err, "Cannot record event in Redis")
	}
	l.Logger.Debug("Recorded event",
		zap.String("EventID", eventID),
	)
	return nil
}
