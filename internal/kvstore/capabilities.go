package kvstore

import "context"

// PrefixDeleter is implemented by stores that can drop every key sharing a
// prefix. It backs cache administration.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Closer is implemented by stores holding resources that must be released
// at shutdown.
type Closer interface {
	Close() error
}
