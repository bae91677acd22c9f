package locker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript löscht den Schlüssel nur, wenn er noch unser Token trägt.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis sperrt über mehrere Instanzen hinweg per SET NX PX.
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisClient erstellt den Redis-Client aus Adresse, Passwort und DB.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedis erstellt einen Redis-Locker. Alle Schlüssel erhalten das Präfix.
func NewRedis(rdb *redis.Client, prefix string, logger *zap.Logger) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, logger: logger}
}

func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	ok, err := r.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// eigener Kontext: die Anfrage kann bereits abgebrochen sein
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.rdb, []string{fullKey}, token).Err(); err != nil {
				r.logger.Warn("Failed to release lock", zap.String("key", fullKey), zap.Error(err))
			}
		})
	}
	return release, true, nil
}
