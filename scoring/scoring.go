package scoring

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/sentvec/blobstore"
	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/persistence"
	"github.com/hupe1980/sentvec/vectors"
)

// Artifact is the blob name models are saved under.
const Artifact = "model"

// maxTerm bounds a persisted term.
const maxTerm = 1 << 16

// Model is a token weighting model.
type Model interface {
	vectors.Weigher

	// Name returns the registry name of the model.
	Name() string

	// Index rebuilds the corpus statistics from docs.
	Index(ctx context.Context, docs []model.Document) error

	// Indexed reports whether statistics are available.
	Indexed() bool

	Save(ctx context.Context, store blobstore.Store) error
	Load(ctx context.Context, store blobstore.Store) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Model)
)

func init() {
	Register(NameBM25, func() Model { return NewBM25(DefaultK1, DefaultB) })
	Register(NameTFIDF, func() Model { return NewTFIDF() })
	Register(NameSIF, func() Model { return NewSIF(DefaultA) })
}

// Register makes a model available under name. It panics on duplicates.
func Register(name string, ctor func() Model) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("scoring: model %q registered twice", name))
	}
	registry[name] = ctor
}

// Create returns a fresh, unindexed model.
func Create(name string) (Model, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, &config.Error{Key: "scoring", Reason: fmt.Sprintf("unknown scoring model %q", name)}
	}
	return ctor(), nil
}

// formula supplies the model specific parts of Scoring.
type formula interface {
	idf(total, df float64) float64
	weight(s *stats, token string, tf, idf float64, length int) float64
}

type stats struct {
	total    int
	tokens   int
	avgdl    float64
	wordfreq map[string]int
	docfreq  map[string]int
	idf      map[string]float64
	avgidf   float64
}

// Scoring is a Model over term and document frequencies.
// It is safe for concurrent use.
type Scoring struct {
	name string
	f    formula

	mu sync.RWMutex
	s  *stats
}

var _ Model = (*Scoring)(nil)

func newScoring(name string, f formula) *Scoring {
	return &Scoring{name: name, f: f}
}

// Name implements Model.
func (sc *Scoring) Name() string { return sc.name }

// Indexed implements Model.
func (sc *Scoring) Indexed() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.s != nil
}

// Len returns the number of indexed documents.
func (sc *Scoring) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.s == nil {
		return 0
	}
	return sc.s.total
}

// Index implements Model. Previous statistics are replaced, even when docs is empty.
func (sc *Scoring) Index(ctx context.Context, docs []model.Document) error {
	s := &stats{
		wordfreq: make(map[string]int),
		docfreq:  make(map[string]int),
	}
	for i, d := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tokens := vectors.Tokens(d.Content)
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			s.wordfreq[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				s.docfreq[t]++
			}
		}
		s.tokens += len(tokens)
		s.total++
	}
	sc.finish(s)

	sc.mu.Lock()
	sc.s = s
	sc.mu.Unlock()
	return nil
}

// finish derives the averages and idf table from raw counts.
func (sc *Scoring) finish(s *stats) {
	if s.total > 0 {
		s.avgdl = float64(s.tokens) / float64(s.total)
	}
	terms := make([]string, 0, len(s.docfreq))
	for t := range s.docfreq {
		terms = append(terms, t)
	}
	slices.Sort(terms)

	s.idf = make(map[string]float64, len(terms))
	var sum float64
	for _, t := range terms {
		v := sc.f.idf(float64(s.total), float64(s.docfreq[t]))
		s.idf[t] = v
		sum += v
	}
	if len(s.idf) > 0 {
		s.avgidf = sum / float64(len(s.idf))
	}
}

// Weights implements vectors.Weigher. It returns nil before Index or Load.
// Unknown tokens use the average idf.
func (sc *Scoring) Weights(tokens []string) []float32 {
	sc.mu.RLock()
	s := sc.s
	sc.mu.RUnlock()

	if s == nil || len(tokens) == 0 {
		return nil
	}

	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}

	out := make([]float32, len(tokens))
	for i, t := range tokens {
		idf, ok := s.idf[t]
		if !ok {
			idf = s.avgidf
		}
		out[i] = float32(sc.f.weight(s, t, float64(freq[t]), idf, len(tokens)))
	}
	return out
}

// Save implements Model. An unindexed model is saved as such.
func (sc *Scoring) Save(ctx context.Context, store blobstore.Store) error {
	sc.mu.RLock()
	s := sc.s
	sc.mu.RUnlock()

	var buf bytes.Buffer
	w := persistence.NewWriter(&buf, persistence.MagicScoring)
	w.String(sc.name)
	if s == nil {
		w.Uint8(0)
	} else {
		w.Uint8(1)
		writeStats(w, s)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("scoring: encode: %w", err)
	}

	return store.Put(ctx, Artifact, buf.Bytes())
}

func writeStats(w *persistence.Writer, s *stats) {
	w.Uint64(uint64(s.total))
	w.Uint64(uint64(s.tokens))

	terms := make([]string, 0, len(s.wordfreq))
	for t := range s.wordfreq {
		terms = append(terms, t)
	}
	slices.Sort(terms)

	w.Uint64(uint64(len(terms)))
	for _, t := range terms {
		w.String(t)
		w.Uint64(uint64(s.wordfreq[t]))
		w.Uint64(uint64(s.docfreq[t]))
	}
}

// Load implements Model.
func (sc *Scoring) Load(ctx context.Context, store blobstore.Store) error {
	data, err := store.Get(ctx, Artifact)
	if err != nil {
		return err
	}

	r, err := persistence.NewReader(bytes.NewReader(data), persistence.MagicScoring)
	if err != nil {
		return fmt.Errorf("scoring: decode: %w", err)
	}

	name := r.String(maxTerm)
	if r.Err() == nil && name != sc.name {
		r.Fail(&persistence.ErrCorrupt{Reason: fmt.Sprintf("scoring model %q, want %q", name, sc.name)})
	}

	var s *stats
	if r.Uint8() == 1 {
		s = readStats(r, uint64(len(data)))
	}
	if err := r.Close(); err != nil {
		return fmt.Errorf("scoring: decode: %w", err)
	}
	if s != nil {
		sc.finish(s)
	}

	sc.mu.Lock()
	sc.s = s
	sc.mu.Unlock()
	return nil
}

// readStats reads the counts written by writeStats. limit bounds the term count.
func readStats(r *persistence.Reader, limit uint64) *stats {
	s := &stats{
		total:  int(r.Uint64()),
		tokens: int(r.Uint64()),
	}
	n := r.Uint64()
	if r.Err() != nil {
		return nil
	}
	if n > limit {
		r.Fail(&persistence.ErrCorrupt{Reason: fmt.Sprintf("term count %d", n)})
		return nil
	}
	s.wordfreq = make(map[string]int, n)
	s.docfreq = make(map[string]int, n)
	for i := uint64(0); i < n && r.Err() == nil; i++ {
		t := r.String(maxTerm)
		s.wordfreq[t] = int(r.Uint64())
		s.docfreq[t] = int(r.Uint64())
	}
	return s
}

// Names returns the registered model names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
