package assembler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/source"
)

// Opener opens the input once per pass.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Run reads the input twice: relations in the first pass, members in the
// second. Afterwards the relations still incomplete are logged.
func (c *Collector) Run(ctx context.Context, open Opener) error {
	passes := []osm.Sink{c.RelationSink(ctx), c.MemberSink(ctx)}
	for i, sink := range passes {
		pass := i + 1
		start := time.Now()
		items, err := c.pass(ctx, open, sink)
		elapsed := time.Since(start)

		c.log.WithPass(pass).LogPass(ctx, pass, items, elapsed, err)
		c.metrics.RecordPass(pass, items, elapsed)
		if err != nil {
			return err
		}
	}
	c.Finish(ctx)
	return nil
}

func (c *Collector) pass(ctx context.Context, open Opener, sink osm.Sink) (int, error) {
	rc, err := open(ctx)
	if err != nil {
		return 0, err
	}
	items := 0
	counted := osm.SinkFunc(func(obj *osm.Object) error {
		items++
		return sink.Add(obj)
	})
	err = source.ReadAll(ctx, rc, counted, c.opts.workers)
	return items, errors.Join(err, rc.Close())
}

// Finish logs every relation still incomplete and returns their number.
func (c *Collector) Finish(ctx context.Context) int {
	n := 0
	for rel, missing := range c.Incomplete() {
		c.log.LogIncomplete(ctx, rel.ID(), missing)
		n++
	}
	st := c.Stats()
	c.log.InfoContext(ctx, "relations assembled",
		"added", st.RelationsAdded,
		"skipped", st.RelationsSkipped,
		"completed", st.Completed,
		"failed", st.Failed,
		"incomplete", n,
		"reserved_memory", st.ReservedMemory,
	)
	return n
}
