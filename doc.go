// Package relstash assembles relations from streams of map entities.
//
// Relations reference nodes, ways and other relations by id. Turning them
// into something useful, such as an area built from its ways, needs the
// members at hand, so relstash reads its input twice and keeps only what is
// still needed in between.
//
// # Packages
//
//   - stash: block-based store for variable-length records with stable handles
//   - relations: position-indexed relations with missing-member counters
//   - assembler: two-pass collector handing out complete relations
//   - osm: entity model and the binary relation record
//   - source: URI-based input opening and NDJSON decoding
//   - compress: explicit registry of compression backends
//   - blobstore: local, in-memory and S3 storage for inputs and reports
//
// # Quick Start
//
//	c := assembler.New(assembler.HandlerFunc(handle),
//	    assembler.WithTagFilter("type", "multipolygon"),
//	    assembler.WithLogger(relstash.NewTextLogger(os.Stderr, slog.LevelInfo).Logger),
//	)
//	defer c.Close()
//
//	err := c.Run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
//	    return source.Open(ctx, "berlin.ndjson.gz")
//	})
//
// This package itself holds the logging and metrics helpers shared by the
// others.
package relstash
