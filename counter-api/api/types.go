package api

import "context"

// Counter is the counter service used by the handlers.
type Counter interface {
	Increment(ctx context.Context) (int64, error)
	Current(ctx context.Context) (int64, error)
}

type counterResponse struct {
	Value int64 `json:"value"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}
