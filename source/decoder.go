package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/relstash/osm"
	"golang.org/x/sync/errgroup"
)

// SyntaxError reports an input line that is not a valid entity.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("source: line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// ErrMissingType is wrapped by SyntaxError for entities without a type.
var ErrMissingType = errors.New("entity without type")

// Decoder reads newline-delimited JSON entities, one object per line:
//
//	{"type":"relation","id":1,"members":[{"type":"way","ref":2,"role":"outer"}]}
//	{"type":"way","id":2,"refs":[10,11,12]}
//
// Blank lines are skipped.
type Decoder struct {
	r    *bufio.Reader
	line int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Line returns the number of the line read last.
func (d *Decoder) Line() int {
	return d.line
}

// next returns the next non-blank line. The slice is owned by the caller.
func (d *Decoder) next() ([]byte, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return nil, err
		}
		d.line++
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			return trimmed, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Decode returns the next entity, or io.EOF at the end of the input.
func (d *Decoder) Decode() (*osm.Object, error) {
	line, err := d.next()
	if err != nil {
		return nil, err
	}
	return decodeLine(line, d.line)
}

func decodeLine(line []byte, n int) (*osm.Object, error) {
	var obj osm.Object
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, &SyntaxError{Line: n, Err: err}
	}
	if obj.Type == osm.UnknownType {
		return nil, &SyntaxError{Line: n, Err: ErrMissingType}
	}
	return &obj, nil
}

// Each decodes r and hands every entity to sink in input order.
func Each(ctx context.Context, r io.Reader, sink osm.Sink) error {
	dec := NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sink.Add(obj); err != nil {
			return err
		}
	}
}

const batchLines = 1024

type batch struct {
	objects []*osm.Object
	err     error
}

// ReadAll is Each with JSON decoding spread over workers goroutines. Entities
// still reach sink one at a time and in input order; sink is only called from
// one goroutine. On a bad line every entity before it has been delivered.
func ReadAll(ctx context.Context, r io.Reader, sink osm.Sink, workers int) error {
	if workers <= 1 {
		return Each(ctx, r, sink)
	}

	g, ctx := errgroup.WithContext(ctx)
	futures := make(chan chan batch, workers)

	g.Go(func() error {
		defer close(futures)

		dec := NewDecoder(r)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			lines := make([][]byte, 0, batchLines)
			first := dec.Line() + 1
			var lineNos []int
			var readErr error
			for len(lines) < batchLines {
				line, err := dec.next()
				if err != nil {
					readErr = err
					break
				}
				lines = append(lines, line)
				lineNos = append(lineNos, dec.Line())
			}
			if readErr != nil && readErr != io.EOF {
				return fmt.Errorf("source: line %d: %w", first, readErr)
			}
			if len(lines) > 0 {
				fut := make(chan batch, 1)
				select {
				case futures <- fut:
				case <-ctx.Done():
					return ctx.Err()
				}
				g.Go(func() error {
					fut <- decodeBatch(lines, lineNos)
					return nil
				})
			}
			if readErr == io.EOF {
				return nil
			}
		}
	})

	g.Go(func() error {
		for fut := range futures {
			var b batch
			select {
			case b = <-fut:
			case <-ctx.Done():
				return ctx.Err()
			}
			for _, obj := range b.objects {
				if err := sink.Add(obj); err != nil {
					return err
				}
			}
			if b.err != nil {
				return b.err
			}
		}
		return nil
	})

	return g.Wait()
}

func decodeBatch(lines [][]byte, lineNos []int) batch {
	objects := make([]*osm.Object, 0, len(lines))
	for i, line := range lines {
		obj, err := decodeLine(line, lineNos[i])
		if err != nil {
			return batch{objects: objects, err: err}
		}
		objects = append(objects, obj)
	}
	return batch{objects: objects}
}
