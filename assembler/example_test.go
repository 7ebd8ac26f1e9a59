package assembler_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/hupe1980/relstash/assembler"
	"github.com/hupe1980/relstash/osm"
)

// Example feeds a collector by hand: the relation first, then candidate
// members.
func Example() {
	ctx := context.Background()

	c := assembler.New(assembler.HandlerFunc(func(_ context.Context, rel osm.RelationView, members []*osm.Object) error {
		fmt.Printf("relation %d complete with %d members\n", rel.ID(), len(members))
		return nil
	}), assembler.WithTagFilter("type", "multipolygon"))
	defer c.Close()

	rel := &osm.Relation{
		ID: 7,
		Members: []osm.Member{
			{Type: osm.WayType, Ref: 1, Role: "outer"},
			{Type: osm.WayType, Ref: 2, Role: "inner"},
		},
		Tags: []osm.Tag{{Key: "type", Value: "multipolygon"}},
	}
	if _, err := c.AddRelation(ctx, rel); err != nil {
		log.Fatal(err)
	}

	for _, id := range []int64{1, 2, 3} {
		matched, err := c.AddMember(ctx, &osm.Object{Type: osm.WayType, ID: id, Refs: []int64{1, 2, 3, 1}})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("way %d matched=%t\n", id, matched)
	}
	// Output:
	// way 1 matched=true
	// relation 7 complete with 2 members
	// way 2 matched=true
	// way 3 matched=false
}

// ExampleCollector_Run reads an NDJSON stream twice and reports what stayed
// incomplete.
func ExampleCollector_Run() {
	input := `{"type":"node","id":1,"lat":52.5,"lon":13.4}
{"type":"relation","id":10,"members":[{"type":"node","ref":1,"role":"stop"}],"tags":[{"k":"type","v":"route"}]}
{"type":"relation","id":11,"members":[{"type":"node","ref":2,"role":"stop"}],"tags":[{"k":"type","v":"route"}]}
`
	c := assembler.New(assembler.HandlerFunc(func(_ context.Context, rel osm.RelationView, members []*osm.Object) error {
		fmt.Printf("route %d: first stop at %.1f,%.1f\n", rel.ID(), members[0].Lat, members[0].Lon)
		return nil
	}))
	defer c.Close()

	err := c.Run(context.Background(), func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(input)), nil
	})
	if err != nil {
		log.Fatal(err)
	}
	for rel, missing := range c.Incomplete() {
		fmt.Printf("route %d: %d stop missing\n", rel.ID(), missing)
	}
	// Output:
	// route 10: first stop at 52.5,13.4
	// route 11: 1 stop missing
}
