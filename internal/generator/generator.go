// Package generator produces benchmark question candidates from external
// sources. Each domain has one Generator that pulls raw documents, extracts
// a candidate fact with the domain's heuristics, and hands survivors to the
// uniqueness verifier for admission.
package generator

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/verify"
)

// Generator produces up to count admitted question records for one domain.
// A shortfall (source exhausted before count) is not an error; callers see
// the returned length. Every call is an independent sample: generators keep
// no state between runs.
type Generator interface {
	Domain() model.Domain
	Generate(ctx context.Context, count int, deps *Deps) ([]model.QuestionRecord, error)
}

// Deps carries the shared collaborators a generation run threads through
// every generator. The emitted set is the explicit per-run deduplication
// state; it is never global.
type Deps struct {
	Verifier    *verify.Verifier
	Stoplist    *Stoplist
	Emitted     *EmittedSet
	Rand        *rand.Rand
	Threshold   func(domain model.Domain) int
	ProbeLimit  int
	Concurrency int
}

// NewDeps builds a Deps with a fresh emitted set and an OS-seeded RNG.
func NewDeps(v *verify.Verifier, stop *Stoplist, threshold func(model.Domain) int, probeLimit, concurrency int) *Deps {
	if probeLimit <= 0 {
		probeLimit = 100
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Deps{
		Verifier:    v,
		Stoplist:    stop,
		Emitted:     NewEmittedSet(),
		Rand:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Threshold:   threshold,
		ProbeLimit:  probeLimit,
		Concurrency: concurrency,
	}
}

// Registry maps domain names to generators.
type Registry struct {
	generators map[model.Domain]Generator
}

// NewRegistry builds a registry from the given generators.
func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{generators: make(map[model.Domain]Generator, len(gens))}
	for _, g := range gens {
		r.generators[g.Domain()] = g
	}
	return r
}

// Get returns the generator for a domain.
func (r *Registry) Get(domain model.Domain) (Generator, error) {
	g, ok := r.generators[domain]
	if !ok {
		return nil, eris.Errorf("generator: no generator registered for domain %q", domain)
	}
	return g, nil
}

// Domains returns the registered domains in canonical order.
func (r *Registry) Domains() []model.Domain {
	var out []model.Domain
	for _, d := range model.KnownDomains() {
		if _, ok := r.generators[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// EmittedSet tracks expected answers already admitted in this run, keyed per
// domain. It is the single synchronization point when document probing runs
// in parallel.
type EmittedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewEmittedSet creates an empty set.
func NewEmittedSet() *EmittedSet {
	return &EmittedSet{seen: make(map[string]struct{})}
}

// TryAdd records the answer and reports whether it was new. The comparison
// is case-insensitive: two candidates differing only in case would collide
// at classification time.
func (s *EmittedSet) TryAdd(domain model.Domain, answer string) bool {
	key := string(domain) + "\x00" + strings.ToLower(strings.TrimSpace(answer))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns how many answers have been admitted.
func (s *EmittedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// newID mints a record identifier prefixed with its domain for readability
// in benchmark files.
func newID(domain model.Domain) string {
	return string(domain) + "-" + uuid.NewString()[:8]
}

// boilerplateValues are literal values too generic to anchor on, rejected
// before any verification spend.
var boilerplateValues = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "none": {}, "nil": {},
	"undefined": {}, "utf-8": {}, "localhost": {}, "0.0.0.0": {},
	"127.0.0.1": {}, "application/json": {}, "text/html": {},
}

// saneValue applies the cheap pre-filter shared by the code-literal
// generators: length bounds and the boilerplate list, then the stoplist.
func saneValue(value string, stop *Stoplist) bool {
	v := strings.TrimSpace(value)
	if len(v) <= 5 || len(v) >= 100 {
		return false
	}
	if _, bad := boilerplateValues[strings.ToLower(v)]; bad {
		return false
	}
	if stop != nil && stop.Contains(strings.ToLower(v)) {
		return false
	}
	return true
}
