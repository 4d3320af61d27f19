// Package gallery keeps an in-memory nearest-neighbor index over enrolled
// identity centroids. The matcher still scores every returned candidate in
// full; the index only narrows large galleries down to a shortlist so a
// verification does not scan thousands of templates.
package gallery

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/attendly/facegate/internal/biometric"
	"github.com/attendly/facegate/internal/match"
	"github.com/attendly/facegate/internal/store"
)

const (
	// maxNeighbors (M) is the maximum number of neighbors per node.
	maxNeighbors = 16

	// DefaultShortlist is how many candidates a search returns when the
	// caller does not specify k.
	DefaultShortlist = 25

	// bruteForceLimit is the gallery size below which the index skips the
	// graph and returns every identity. Graph traversal only pays off on
	// galleries larger than the shortlist itself.
	bruteForceLimit = 2 * DefaultShortlist
)

// Index is a sharable shortlist index over identity centroids.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	byID  map[string]match.Candidate
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		byID: make(map[string]match.Candidate),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given identities. Records
// without a stored centroid get one derived from their raw samples;
// identities with no usable vector at all are skipped.
func (x *Index) Build(identities []*store.Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = newGraph()
	x.byID = make(map[string]match.Candidate, len(identities))

	for _, identity := range identities {
		c := identity.Candidate()
		if len(c.Centroid) == 0 {
			continue
		}
		x.graph.Add(hnsw.MakeNode(identity.ID, c.Centroid))
		x.byID[identity.ID] = c
	}
}

// Upsert adds or replaces a single identity in the index.
func (x *Index) Upsert(identity *store.Identity) {
	c := identity.Candidate()
	if len(c.Centroid) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		x.graph = newGraph()
	}
	x.graph.Add(hnsw.MakeNode(identity.ID, c.Centroid))
	x.byID[identity.ID] = c
}

// Remove drops an identity from the index. The graph keeps the node but the
// lookup filter excludes it from results.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.byID, id)
}

// Count returns the number of searchable identities.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

// Candidates returns up to k candidates nearest to the probe. Small
// galleries are returned whole so the matcher's safeguards always see the
// full field of runners-up.
func (x *Index) Candidates(probe biometric.Embedding, k int) []match.Candidate {
	if k <= 0 {
		k = DefaultShortlist
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.byID) <= bruteForceLimit || x.graph == nil {
		out := make([]match.Candidate, 0, len(x.byID))
		for _, c := range x.byID {
			out = append(out, c)
		}
		return out
	}

	// Over-fetch to compensate for removed identities still present as
	// graph nodes.
	neighbors := x.graph.Search(probe, k+k/2)
	out := make([]match.Candidate, 0, k)
	for _, n := range neighbors {
		c, ok := x.byID[n.Key]
		if !ok {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}
