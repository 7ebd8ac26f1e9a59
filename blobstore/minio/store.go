package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/relstash/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes how to reach an S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// ErrNoEndpoint is returned by NewClient for an empty endpoint.
var ErrNoEndpoint = errors.New("minio: endpoint required")

// NewClient builds a MinIO client with static credentials.
func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// Store implements blobstore.Store for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a store for bucket. rootPrefix is prepended to all keys.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func notFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket"
}

// Open streams an object.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)

	// GetObject is lazy; stat first so missing objects fail here.
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, blobstore.ErrNotFound)
		}
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Put uploads data as a single object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

// List returns all object names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		// Strip our root prefix
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}
