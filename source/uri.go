package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Scheme identifies where an input lives.
type Scheme string

const (
	// SchemeFile is a local path, with or without a file:// prefix.
	SchemeFile Scheme = "file"
	// SchemeS3 is an object in S3-compatible storage, s3://bucket/key.
	SchemeS3 Scheme = "s3"
)

// ErrUnsupportedScheme is returned for URIs that are neither local paths nor s3.
var ErrUnsupportedScheme = errors.New("source: unsupported scheme")

// ErrInvalidURI is returned for malformed input locations.
var ErrInvalidURI = errors.New("source: invalid uri")

// Location is a parsed input URI.
type Location struct {
	Scheme Scheme
	// Bucket is set for SchemeS3 only.
	Bucket string
	// Key is the file path or the object key.
	Key string
}

// IsPrefix reports whether the location names a directory or key prefix
// rather than a single object.
func (l Location) IsPrefix() bool {
	return strings.HasSuffix(l.Key, "/")
}

func (l Location) String() string {
	if l.Scheme == SchemeS3 {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Key
}

// ParseURI splits uri into a Location. Strings without a scheme are local
// paths.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	i := strings.Index(uri, "://")
	if i < 0 {
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	switch Scheme(strings.ToLower(u.Scheme)) {
	case SchemeFile:
		if u.Path == "" {
			return Location{}, fmt.Errorf("%w: %q has no path", ErrInvalidURI, uri)
		}
		return Location{Scheme: SchemeFile, Key: u.Path}, nil
	case SchemeS3:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q needs s3://bucket/key", ErrInvalidURI, uri)
		}
		return Location{Scheme: SchemeS3, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
