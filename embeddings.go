package sentvec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sentvec/blobstore"
	"github.com/hupe1980/sentvec/codec"
	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/distance"
	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/reducer"
	"github.com/hupe1980/sentvec/scoring"
	"github.com/hupe1980/sentvec/vectors"

	// Register the index structures.
	_ "github.com/hupe1980/sentvec/index/flat"
	_ "github.com/hupe1980/sentvec/index/ivf"
)

// DefaultLimit is the number of results Search returns when limit <= 0.
const DefaultLimit = 3

// Artifact names.
const (
	ArtifactConfig     = "config"
	ArtifactEmbeddings = "embeddings"
	ArtifactLSA        = "lsa"
	ArtifactScoring    = "scoring"
)

// state is an immutable snapshot. Index and Load publish a new one.
type state struct {
	cfg     *config.Config
	scoring scoring.Model
	source  vectors.Source
	reducer *reducer.Model
	index   index.Index
}

// Embeddings builds and queries a sentence embeddings index.
//
// Reads (Transform, Search, Similarity, Save) run concurrently with each
// other and with a build. Score, Index and Load are serialized. Index and
// Load replace the whole state at once: a failed build or load leaves the previous state
// untouched.
type Embeddings struct {
	opts options

	buildMu sync.Mutex
	state   atomic.Pointer[state]
}

// New creates an Embeddings for cfg. The scoring model and the vector source
// are resolved once here. A nil cfg yields an instance that can only Load.
func New(cfg *config.Config, optFns ...Option) (*Embeddings, error) {
	e := &Embeddings{opts: applyOptions(optFns)}
	if cfg == nil {
		return e, nil
	}

	c := cfg.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, translateError(err)
	}
	st, err := e.resolve(c)
	if err != nil {
		return nil, translateError(err)
	}
	e.state.Store(st)
	return e, nil
}

// Load creates an Embeddings from the artifacts in dir.
func Load(ctx context.Context, dir string, optFns ...Option) (*Embeddings, error) {
	e, err := New(nil, optFns...)
	if err != nil {
		return nil, err
	}
	if err := e.Load(ctx, dir); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Embeddings) resolve(cfg *config.Config) (*state, error) {
	st := &state{cfg: cfg}

	var w vectors.Weigher
	if cfg.Scoring != "" {
		m, err := scoring.Create(cfg.Scoring)
		if err != nil {
			return nil, err
		}
		st.scoring = m
		w = m
	}

	if e.opts.source != nil {
		st.source = e.opts.source
		return st, nil
	}
	src, err := vectors.Create(cfg.Method, vectors.Options{
		Path:       cfg.Path,
		Dimensions: cfg.Dimensions,
		Scoring:    w,
	})
	if err != nil {
		return nil, fmt.Errorf("vector source %s: %w", cfg.Method, err)
	}
	st.source = src
	return st, nil
}

func (e *Embeddings) current() (*state, error) {
	st := e.state.Load()
	if st == nil {
		return nil, ErrNotConfigured
	}
	return st, nil
}

// Score builds the scoring model over docs. It is a no-op when no scoring
// model is configured. Score waits for a running Index, so a build never
// sees the token weights change.
func (e *Embeddings) Score(ctx context.Context, docs []model.Document) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	st, err := e.current()
	if err != nil {
		return err
	}
	if st.scoring == nil {
		return nil
	}

	err = st.scoring.Index(ctx, docs)
	e.opts.logger.LogScore(ctx, st.scoring.Name(), len(docs), err)
	return err
}

// Index builds a new index over docs and replaces the current one.
// Every document must carry an id. The reducer, when pca is configured, is
// fitted on the full corpus before normalization.
func (e *Embeddings) Index(ctx context.Context, docs []model.Document) (err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordIndex(len(docs), time.Since(start), err)
	}()

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	st, err := e.current()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrEmptyCorpus
	}

	next, err := e.build(ctx, st, docs)
	if err != nil {
		err = translateError(err)
		e.opts.logger.LogIndex(ctx, len(docs), 0, "", err)
		return err
	}

	e.state.Store(next)
	e.opts.logger.LogIndex(ctx, len(docs), next.index.Dimension(), next.index.Kind().String(), nil)
	return nil
}

func (e *Embeddings) build(ctx context.Context, st *state, docs []model.Document) (*state, error) {
	batch, err := vectors.Stream(ctx, st.source, docs)
	if err != nil {
		return nil, err
	}

	m, err := e.drain(ctx, batch)
	if err != nil {
		return nil, err
	}

	var red *reducer.Model
	if st.cfg.PCA > 0 {
		red, err = reducer.Fit(ctx, m, st.cfg.PCA)
		if err != nil {
			return nil, err
		}
		if err := red.Apply(m); err != nil {
			return nil, err
		}
	}

	if err := distance.NormalizeRows(m); err != nil {
		var re *distance.RowError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: document %d", ErrDegenerateVector, batch.IDs[re.Row])
		}
		return nil, err
	}

	idx, err := index.Build(ctx, batch.IDs, m, st.cfg.Threshold, indexOptions(st.cfg))
	if err != nil {
		return nil, err
	}

	next := *st
	next.reducer = red
	next.index = idx
	return &next, nil
}

// drain copies the batch into a matrix. At most bufferSize vectors wait
// between the source and the copy.
func (e *Embeddings) drain(ctx context.Context, batch *vectors.Batch) (*matrix.Matrix, error) {
	n, dim := len(batch.IDs), batch.Dimension
	if dim <= 0 {
		return nil, &config.Error{Key: "dimensions", Reason: fmt.Sprintf("vector source reports width %d", dim)}
	}

	m := matrix.New(n, dim)
	ch := make(chan []float32, e.opts.bufferSize)
	rows := 0

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ch)
		for v, err := range batch.Vectors {
			if err != nil {
				return err
			}
			select {
			case ch <- v:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for v := range ch {
			if len(v) != dim {
				return &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
			}
			if rows == n {
				return fmt.Errorf("vector source yielded more than %d vectors", n)
			}
			copy(m.Row(rows), v)
			rows++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if rows != n {
		return nil, fmt.Errorf("vector source yielded %d of %d vectors", rows, n)
	}
	return m, nil
}

func indexOptions(cfg *config.Config) index.Options {
	return index.Options{
		Partitions: cfg.Partitions,
		NProbe:     cfg.NProbe,
		Iterations: cfg.Iterations,
		Seed:       cfg.Seed,
		Quantize:   cfg.Quantize == config.QuantizeSQ8,
	}
}

// Transform converts doc into a unit-norm vector using the same reducer and
// normalization as the index build.
func (e *Embeddings) Transform(ctx context.Context, doc model.Document) (v []float32, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordTransform(1, time.Since(start), err)
	}()

	st, err := e.current()
	if err != nil {
		return nil, err
	}
	return e.transform(ctx, st, doc)
}

func (e *Embeddings) transform(ctx context.Context, st *state, doc model.Document) ([]float32, error) {
	v, err := st.source.Transform(ctx, doc)
	if err != nil {
		return nil, translateError(err)
	}

	dim := st.source.Dimension()
	if st.index != nil {
		dim = st.index.Dimension()
	}
	if len(v) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}

	if st.reducer != nil {
		if err := st.reducer.ApplyVector(v); err != nil {
			return nil, translateError(err)
		}
	}
	if err := distance.Normalize(v); err != nil {
		return nil, translateError(err)
	}
	return v, nil
}

// Search returns up to limit documents most similar to query, best first.
// Equal scores rank by ascending id. limit <= 0 selects DefaultLimit.
func (e *Embeddings) Search(ctx context.Context, query model.Content, limit int) (results []model.Result, err error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordSearch(limit, time.Since(start), err)
		e.opts.logger.LogSearch(ctx, limit, len(results), err)
	}()

	st, err := e.current()
	if err != nil {
		return nil, err
	}
	if st.index == nil {
		return nil, ErrNotIndexed
	}

	v, err := e.transform(ctx, st, model.Query(query))
	if err != nil {
		return nil, err
	}
	results, err = st.index.Search(ctx, v, limit)
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}

// Similarity returns the cosine similarity between query and each of docs,
// in input order. It does not need an index.
func (e *Embeddings) Similarity(ctx context.Context, query model.Content, docs []model.Content) (scores []float32, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordTransform(len(docs)+1, time.Since(start), err)
	}()

	st, err := e.current()
	if err != nil {
		return nil, err
	}

	q, err := e.transform(ctx, st, model.Query(query))
	if err != nil {
		return nil, err
	}

	scores = make([]float32, len(docs))
	for i, d := range docs {
		v, err := e.transform(ctx, st, model.Query(d))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		scores[i] = distance.Dot(q, v)
	}
	return scores, nil
}

// Save writes the artifacts to the local directory dir, creating it if needed.
func (e *Embeddings) Save(ctx context.Context, dir string) error {
	return e.SaveTo(ctx, blobstore.NewLocalStore(dir))
}

// Load replaces the current state with the artifacts in the local directory dir.
func (e *Embeddings) Load(ctx context.Context, dir string) error {
	return e.LoadFrom(ctx, blobstore.NewLocalStore(dir))
}

// SaveTo writes the config, embeddings, lsa and scoring artifacts to store.
// The config artifact is written last. Artifacts left over from an earlier
// save with a different configuration are removed.
func (e *Embeddings) SaveTo(ctx context.Context, store blobstore.Store) (err error) {
	written := 0
	defer func() {
		e.opts.logger.LogSave(ctx, written, err)
	}()

	st, err := e.current()
	if err != nil {
		return err
	}
	if st.index == nil {
		return ErrNotIndexed
	}

	var buf bytes.Buffer
	if err := index.Encode(&buf, st.index, st.cfg.CompressionType()); err != nil {
		return err
	}
	if err := store.Put(ctx, ArtifactEmbeddings, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", ArtifactEmbeddings, err)
	}
	written++

	if st.reducer != nil {
		data, err := st.reducer.MarshalBinary()
		if err != nil {
			return err
		}
		if err := store.Put(ctx, ArtifactLSA, data); err != nil {
			return fmt.Errorf("write %s: %w", ArtifactLSA, err)
		}
		written++
	} else if err := store.Delete(ctx, ArtifactLSA); err != nil {
		return fmt.Errorf("delete %s: %w", ArtifactLSA, err)
	}

	scoringStore := blobstore.Sub(store, ArtifactScoring)
	if st.scoring != nil {
		if err := st.scoring.Save(ctx, scoringStore); err != nil {
			return fmt.Errorf("write %s: %w", ArtifactScoring, err)
		}
		written++
	} else if err := deleteAll(ctx, scoringStore); err != nil {
		return fmt.Errorf("delete %s: %w", ArtifactScoring, err)
	}

	data, err := codec.Encode(e.opts.codec, st.cfg)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, ArtifactConfig, data); err != nil {
		return fmt.Errorf("write %s: %w", ArtifactConfig, err)
	}
	written++
	return nil
}

func deleteAll(ctx context.Context, store blobstore.Store) error {
	names, err := store.List(ctx, "")
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := store.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// LoadFrom replaces the current state with the artifacts in store. The
// vector source is resolved again from the loaded configuration.
func (e *Embeddings) LoadFrom(ctx context.Context, store blobstore.Store) (err error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	st, err := e.read(ctx, store)
	if err != nil {
		e.opts.logger.LogLoad(ctx, 0, "", err)
		return err
	}

	e.state.Store(st)
	e.opts.logger.LogLoad(ctx, st.index.Len(), st.index.Kind().String(), nil)
	return nil
}

func (e *Embeddings) read(ctx context.Context, store blobstore.Store) (*state, error) {
	data, err := store.Get(ctx, ArtifactConfig)
	if err != nil {
		return nil, missingArtifact(ArtifactConfig, err)
	}
	cfg, err := config.Decode(data)
	if err != nil {
		return nil, translateError(err)
	}

	data, err = store.Get(ctx, ArtifactEmbeddings)
	if err != nil {
		return nil, missingArtifact(ArtifactEmbeddings, err)
	}
	idx, err := index.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ArtifactEmbeddings, err)
	}

	var red *reducer.Model
	if cfg.PCA > 0 {
		data, err := store.Get(ctx, ArtifactLSA)
		if err != nil {
			return nil, missingArtifact(ArtifactLSA, err)
		}
		red, err = reducer.Read(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ArtifactLSA, err)
		}
		if red.Dimension() != idx.Dimension() {
			return nil, &ErrDimensionMismatch{Expected: idx.Dimension(), Actual: red.Dimension()}
		}
	}

	st, err := e.resolve(cfg)
	if err != nil {
		return nil, translateError(err)
	}
	if st.scoring != nil {
		if err := st.scoring.Load(ctx, blobstore.Sub(store, ArtifactScoring)); err != nil {
			return nil, missingArtifact(ArtifactScoring+"/"+scoring.Artifact, err)
		}
	}
	if st.source.Dimension() != idx.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: idx.Dimension(), Actual: st.source.Dimension()}
	}

	st.reducer = red
	st.index = idx
	return st, nil
}

// Config returns a copy of the active configuration, or nil.
func (e *Embeddings) Config() *config.Config {
	st := e.state.Load()
	if st == nil {
		return nil
	}
	return st.cfg.Clone()
}

// Len returns the number of indexed documents.
func (e *Embeddings) Len() int {
	st := e.state.Load()
	if st == nil || st.index == nil {
		return 0
	}
	return st.index.Len()
}

// Structure returns the kind of the active index, or 0 before Index or Load.
func (e *Embeddings) Structure() index.Kind {
	st := e.state.Load()
	if st == nil || st.index == nil {
		return 0
	}
	return st.index.Kind()
}
