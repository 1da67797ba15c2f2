package http

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/selection"
	"tabstat/internal/stats"
	"tabstat/internal/table"
	api "tabstat/pkg/contracts/api/v1"
)

// RequestOptions holds the server-side defaults applied to every request
type RequestOptions struct {
	// DataDir is the root that request paths are resolved against.
	DataDir        string
	DefaultThreads int
	Table          table.Options
}

// buildRequest turns a validated contract request into an engine request
func buildRequest(ctx context.Context, in api.StatsRequest, opts RequestOptions) (engine.Request, error) {
	ops, err := stats.ParseOperationSet(in.Operations)
	if err != nil {
		return engine.Request{}, err
	}

	threads := in.Threads
	if threads == 0 {
		threads = max(opts.DefaultThreads, 1)
	}

	req := engine.Request{
		Rows:       selection.ParseRangeSpec(in.Rows),
		Cols:       selection.ParseRangeSpec(in.Cols),
		Operations: ops,
		Threads:    threads,
	}

	tableOpts := opts.Table
	if in.Delimiter != "" {
		d, err := table.ParseDelimiter(in.Delimiter)
		if err != nil {
			return engine.Request{}, err
		}
		tableOpts.Delimiter = d
	}

	if in.CSV != "" {
		t, err := table.Parse(strings.NewReader(in.CSV), tableOpts)
		if err != nil {
			return engine.Request{}, err
		}
		req.Table = t
		return req, nil
	}

	path, err := resolveDataPath(opts.DataDir, in.Path)
	if err != nil {
		return engine.Request{}, err
	}
	if in.Delimiter != "" && tableOpts.Delimiter != opts.Table.Delimiter {
		// The engine parses with the server delimiter; a per-request one
		// means loading here.
		req.Table, err = table.Load(ctx, path, tableOpts)
		if err != nil {
			return engine.Request{}, err
		}
	}
	req.Path = path
	return req, nil
}

// resolveDataPath maps a client path onto dataDir. Absolute paths and paths
// that climb out of dataDir are rejected.
func resolveDataPath(dataDir, p string) (string, error) {
	if p == "" {
		return "", apperrors.NewInvalidRequestError("a file path or csv body is required", nil)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) || !filepath.IsLocal(clean) {
		return "", apperrors.NewInvalidRequestError(fmt.Sprintf("path %q must be relative to the data directory", p), nil)
	}
	return filepath.Join(dataDir, clean), nil
}

// publicError rewrites errors that would reveal server-side paths
func publicError(err error, in api.StatsRequest) error {
	if apperrors.IsType(err, apperrors.ErrTypeFileNotFound) {
		return apperrors.NewFileNotFoundError(in.Path, nil)
	}
	return err
}
