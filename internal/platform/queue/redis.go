package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

// Connect opens the redis client used for locks and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}

	RDB = rdb
	slog.Info("Successfully connected to Redis", "addr", addr)
	return rdb, nil
}

func Close() {
	if RDB != nil {
		RDB.Close()
		slog.Info("Redis connection closed")
	}
}

// AsynqOpt builds the asynq connection options for the same redis instance.
func AsynqOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}
