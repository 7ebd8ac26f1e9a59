package testutil

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/relstash/osm"
)

// RNG wraps a seeded random source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s; s=1.5 puts most of the mass on a few values, which is how
// popular ways end up shared by many relations.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// DatasetConfig shapes a generated dataset.
type DatasetConfig struct {
	Nodes     int
	Ways      int
	Relations int
	// MaxMembers bounds the member count of a relation. Relations get at
	// least one member.
	MaxMembers int
	// MissingRate is the probability that a member references an object
	// that is not part of the dataset.
	MissingRate float64
	// Skew is the Zipf exponent for picking member ways. 0 picks uniformly.
	Skew float64
}

// Dataset is a synthetic extract: nodes, then ways, then relations, the
// order real files use.
type Dataset struct {
	Nodes     []*osm.Object
	Ways      []*osm.Object
	Relations []*osm.Relation
}

var relationTypes = []string{"multipolygon", "route", "boundary"}

// Dataset generates a dataset. Node ids start at 1, way ids at 1000001 and
// relation ids at 2000001. Missing members use negative ids.
func (r *RNG) Dataset(cfg DatasetConfig) *Dataset {
	if cfg.MaxMembers < 1 {
		cfg.MaxMembers = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ds := &Dataset{}
	for i := range cfg.Nodes {
		ds.Nodes = append(ds.Nodes, &osm.Object{
			Type: osm.NodeType,
			ID:   int64(i + 1),
			Lat:  r.rand.Float64()*180 - 90,
			Lon:  r.rand.Float64()*360 - 180,
		})
	}
	for i := range cfg.Ways {
		refs := make([]int64, 2+r.rand.Intn(4))
		for j := range refs {
			refs[j] = int64(1 + r.rand.Intn(max(cfg.Nodes, 1)))
		}
		ds.Ways = append(ds.Ways, &osm.Object{
			Type: osm.WayType,
			ID:   int64(1_000_001 + i),
			Refs: refs,
			Tags: []osm.Tag{{Key: "highway", Value: "residential"}},
		})
	}

	missing := int64(0)
	for i := range cfg.Relations {
		n := 1 + r.rand.Intn(cfg.MaxMembers)
		members := make([]osm.Member, n)
		for j := range members {
			switch {
			case r.rand.Float64() < cfg.MissingRate:
				missing++
				members[j] = osm.Member{Type: osm.WayType, Ref: -missing, Role: "outer"}
			case cfg.Ways > 0 && (cfg.Nodes == 0 || r.rand.Intn(4) > 0):
				k := r.rand.Intn(cfg.Ways)
				if cfg.Skew > 0 {
					k = r.zipfLocked(cfg.Ways, cfg.Skew)
				}
				members[j] = osm.Member{Type: osm.WayType, Ref: ds.Ways[k].ID, Role: "outer"}
			case cfg.Nodes > 0:
				members[j] = osm.Member{Type: osm.NodeType, Ref: ds.Nodes[r.rand.Intn(cfg.Nodes)].ID, Role: "stop"}
			default:
				missing++
				members[j] = osm.Member{Type: osm.NodeType, Ref: -missing}
			}
		}
		ds.Relations = append(ds.Relations, &osm.Relation{
			ID:      int64(2_000_001 + i),
			Members: members,
			Tags:    []osm.Tag{{Key: "type", Value: relationTypes[r.rand.Intn(len(relationTypes))]}},
		})
	}
	return ds
}

// Objects returns every entity in file order.
func (d *Dataset) Objects() []*osm.Object {
	objs := make([]*osm.Object, 0, len(d.Nodes)+len(d.Ways)+len(d.Relations))
	objs = append(objs, d.Nodes...)
	objs = append(objs, d.Ways...)
	for _, rel := range d.Relations {
		objs = append(objs, &osm.Object{
			Type:    osm.RelationType,
			ID:      rel.ID,
			Version: rel.Version,
			Members: rel.Members,
			Tags:    rel.Tags,
		})
	}
	return objs
}

// NDJSON encodes the dataset one object per line.
func (d *Dataset) NDJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, obj := range d.Objects() {
		if err := enc.Encode(obj); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Split partitions the relation ids into those whose members all exist in
// the dataset and the rest. Relations rejected by keep are left out.
func (d *Dataset) Split(keep func(*osm.Relation) bool) (complete, incomplete []int64) {
	present := make(map[osm.ObjectKey]bool, len(d.Nodes)+len(d.Ways))
	for _, obj := range d.Nodes {
		present[obj.Key()] = true
	}
	for _, obj := range d.Ways {
		present[obj.Key()] = true
	}
	for _, rel := range d.Relations {
		if keep != nil && !keep(rel) {
			continue
		}
		ok := !slices.ContainsFunc(rel.Members, func(m osm.Member) bool {
			return !present[m.Key()]
		})
		if ok {
			complete = append(complete, rel.ID)
		} else {
			incomplete = append(incomplete, rel.ID)
		}
	}
	return complete, incomplete
}
