package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/relstash/blobstore"
	"github.com/hupe1980/relstash/blobstore/minio"
	"github.com/hupe1980/relstash/compress"
	"github.com/hupe1980/relstash/internal/resource"
)

type options struct {
	registry    *compress.Registry
	compression compress.Kind
	controller  *resource.Controller
	store       blobstore.Store
	s3          minio.Config
	logger      *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithRegistry sets the compression registry. Defaults to compress.NewRegistry().
func WithRegistry(r *compress.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithCompression forces a compression kind instead of detecting it from the
// file extension.
func WithCompression(k compress.Kind) Option {
	return func(o *options) {
		o.compression = k
	}
}

// WithController throttles reads of the raw input through the controller's
// IO limit.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithStore reads the key of the URI from s regardless of its scheme.
func WithStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithS3 configures the endpoint used for s3:// URIs.
func WithS3(cfg minio.Config) Option {
	return func(o *options) {
		o.s3 = cfg
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

// StoreFor returns the store that serves loc.
func StoreFor(loc Location, s3 minio.Config) (blobstore.Store, error) {
	switch loc.Scheme {
	case SchemeFile:
		return blobstore.NewLocalStore(""), nil
	case SchemeS3:
		client, err := minio.NewClient(s3)
		if err != nil {
			return nil, fmt.Errorf("source: %s: %w", loc, err)
		}
		return minio.NewStore(client, loc.Bucket, ""), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme)
	}
}

// Open returns a decompressed stream of the input at uri. A uri ending in a
// slash names every object under that prefix; they are read in name order,
// each with its own compression, as one stream.
func Open(ctx context.Context, uri string, opts ...Option) (io.ReadCloser, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = compress.NewRegistry()
	}

	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	store, prefix := o.store, loc.Key
	if store == nil {
		if loc.Scheme == SchemeFile && loc.IsPrefix() {
			store, prefix = blobstore.NewLocalStore(loc.Key), ""
		} else if store, err = StoreFor(loc, o.s3); err != nil {
			return nil, err
		}
	}

	if !loc.IsPrefix() {
		return openPart(ctx, store, loc.Key, loc.String(), &o)
	}

	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("source: list %s: %w", loc, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("source: %s: %w", loc, blobstore.ErrNotFound)
	}
	o.logger.Debug("input parts listed", "uri", loc.String(), "parts", len(names))
	return &multiStream{
		ctx:   ctx,
		names: names,
		open: func(ctx context.Context, name string) (io.ReadCloser, error) {
			return openPart(ctx, store, name, loc.String()+" "+name, &o)
		},
	}, nil
}

func openPart(ctx context.Context, store blobstore.Store, key, label string, o *options) (io.ReadCloser, error) {
	raw, err := store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", label, err)
	}

	var in io.Reader = raw
	if o.controller != nil {
		in = resource.NewRateLimitedReader(ctx, raw, o.controller)
	}

	kind := o.compression
	if kind == "" {
		kind = o.registry.DetectFromPath(key)
	}
	dec, err := o.registry.NewReader(kind, in)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("source: open %s: %w", label, err)
	}

	o.logger.Debug("input opened", "uri", label, "compression", string(kind))
	return &stream{dec: dec, raw: raw}, nil
}

type stream struct {
	dec io.ReadCloser
	raw io.ReadCloser
}

func (s *stream) Read(p []byte) (int, error) {
	return s.dec.Read(p)
}

func (s *stream) Close() error {
	return errors.Join(s.dec.Close(), s.raw.Close())
}

// multiStream concatenates parts, opening each when the previous one is
// exhausted. A part that does not end in a newline gets one, so its last
// line does not run into the next part.
type multiStream struct {
	ctx     context.Context
	open    func(ctx context.Context, name string) (io.ReadCloser, error)
	names   []string
	cur     io.ReadCloser
	last    byte
	newline bool
}

func (m *multiStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if m.newline {
			m.newline = false
			p[0] = '\n'
			return 1, nil
		}
		if m.cur == nil {
			if len(m.names) == 0 {
				return 0, io.EOF
			}
			rc, err := m.open(m.ctx, m.names[0])
			if err != nil {
				return 0, err
			}
			m.names = m.names[1:]
			m.cur, m.last = rc, '\n'
		}

		n, err := m.cur.Read(p)
		if n > 0 {
			m.last = p[n-1]
		}
		if !errors.Is(err, io.EOF) {
			return n, err
		}
		err = m.cur.Close()
		m.cur = nil
		m.newline = m.last != '\n'
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (m *multiStream) Close() error {
	m.names = nil
	if m.cur == nil {
		return nil
	}
	err := m.cur.Close()
	m.cur = nil
	return err
}
