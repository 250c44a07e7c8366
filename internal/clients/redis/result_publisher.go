package redis

import (
	"context"
	"encoding/json"

	"nocs-settlement/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// defaultMaxLen caps the results stream; trimming is approximate.
const defaultMaxLen = 10000

// StreamClient interface for Redis stream operations
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// ResultPublisher appends scenario results to a Redis stream so other tools
// can follow a run.
type ResultPublisher struct {
	redis  StreamClient
	stream string
	logger *zap.Logger
}

func NewResultPublisher(rdb StreamClient, stream string, logger *zap.Logger) *ResultPublisher {
	return &ResultPublisher{
		redis:  rdb,
		stream: stream,
		logger: logger,
	}
}

// Publish adds one entry with fields "type" and "data" (the JSON of
// payload) and returns the stream entry id.
func (p *ResultPublisher) Publish(ctx context.Context, kind string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.WrapDomainError(err, errors.CodeInternal, "result serialization failed", "failed to marshal result")
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": kind,
			"data": string(data),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		p.logger.Warn("result publication failed", zap.String("stream", p.stream), zap.Error(err))
		return "", errors.WrapDomainError(err, errors.CodeInternal, "result publication failed", "redis error")
	}

	return id, nil
}
