package benchmark_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/hupe1980/relstash/blobstore"
	"github.com/hupe1980/relstash/compress"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/testutil"
)

var benchDatasetConfig = testutil.DatasetConfig{
	Nodes:       20_000,
	Ways:        5_000,
	Relations:   2_000,
	MaxMembers:  12,
	MissingRate: 0.01,
	Skew:        1.2,
}

var (
	fixtureOnce sync.Once
	fixture     *testutil.Dataset
	fixtureData []byte
	fixtureErr  error
)

// loadFixture generates the shared dataset once per test binary.
func loadFixture(b *testing.B) (*testutil.Dataset, []byte) {
	b.Helper()
	fixtureOnce.Do(func() {
		fixture = testutil.NewRNG(42).Dataset(benchDatasetConfig)
		fixtureData, fixtureErr = fixture.NDJSON()
	})
	if fixtureErr != nil {
		b.Fatal(fixtureErr)
	}
	return fixture, fixtureData
}

// compressedStore puts the fixture into a memory store under name,
// compressed with kind.
func compressedStore(b *testing.B, name string, kind compress.Kind) blobstore.Store {
	b.Helper()
	_, data := loadFixture(b)

	var buf bytes.Buffer
	w, err := compress.NewRegistry().NewWriter(kind, &buf)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		b.Fatal(err)
	}
	if err := w.Close(); err != nil {
		b.Fatal(err)
	}

	store := blobstore.NewMemoryStore()
	if err := store.Put(context.Background(), name, buf.Bytes()); err != nil {
		b.Fatal(err)
	}
	return store
}

func discardHandler(context.Context, osm.RelationView, []*osm.Object) error { return nil }

func readerOf(data []byte) func(context.Context) (io.ReadCloser, error) {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}
