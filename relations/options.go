package relations

import (
	"io"
	"log/slog"

	"github.com/hupe1980/relstash/stash"
)

type options struct {
	stash        *stash.Stash
	stashOptions []stash.Option
	logger       *slog.Logger
}

// Option configures a Database.
type Option func(*options)

// WithStash makes the database use s instead of creating its own stash.
// The caller keeps ownership: Close does not close s.
func WithStash(s *stash.Stash) Option {
	return func(o *options) {
		o.stash = s
	}
}

// WithStashOptions configures the stash created by the database.
// Ignored when WithStash is given.
func WithStashOptions(opts ...stash.Option) Option {
	return func(o *options) {
		o.stashOptions = append(o.stashOptions, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
