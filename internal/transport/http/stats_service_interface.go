package http

import (
	"context"

	"tabstat/internal/engine"
)

// StatsRunner is the part of engine.Engine the handlers use
type StatsRunner interface {
	Run(ctx context.Context, req engine.Request) (*engine.Response, error)
}
