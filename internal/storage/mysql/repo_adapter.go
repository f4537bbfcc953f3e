package mysql

import (
	"context"

	"mailcorpus/internal/storage"
)

// newRepository is a test hook; tests replace it to avoid a real server.
var newRepository = NewRepository

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return storage.WithClose(r, closeFn), nil
	})
}
