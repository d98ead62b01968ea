package queue

import (
	"context"
	"fmt"

	"counter-pipeline/config"
)

// Open builds the queue backend selected by cfg.Queue.Backend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendSQS:
		return NewSQS(ctx, SQSConfig{
			Region:            cfg.AWS.Region,
			Endpoint:          cfg.AWS.Endpoint,
			AccessKeyID:       cfg.AWS.AccessKeyID,
			SecretAccessKey:   cfg.AWS.SecretAccessKey,
			VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		})
	case config.QueueBackendAzure:
		return NewAzure(cfg.Storage.ConnectionString, cfg.Queue.VisibilityTimeout)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
