// Package assembler collects relations together with their members.
//
// Relations reference nodes, ways and other relations that usually appear
// earlier in the input. A Collector therefore reads the input twice. In the
// first pass it keeps the relations it is interested in, in a
// relations.Database, and notes which objects each one waits for. In the
// second pass every awaited object is copied once into a member stash and
// counted off the relations referencing it. A relation whose counter drops to
// zero is handed to the Handler together with its member objects and then
// removed; member objects are released when the last relation that needs
// them is complete.
//
//	c := assembler.New(assembler.HandlerFunc(func(ctx context.Context, rel osm.RelationView, members []*osm.Object) error {
//	    return buildArea(rel, members)
//	}), assembler.WithTagFilter("type", "multipolygon", "boundary"))
//	defer c.Close()
//
//	err := c.Run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
//	    return source.Open(ctx, "berlin.ndjson.zst")
//	})
package assembler
