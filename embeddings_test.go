package sentvec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sentvec/blobstore"
	"github.com/hupe1980/sentvec/codec"
	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/vectors"
)

func hashingConfig() *config.Config {
	return &config.Config{Method: vectors.MethodHashing, Dimensions: 256}
}

func corpus(n int) []model.Document {
	docs := make([]model.Document, n)
	for i := range n {
		text := fmt.Sprintf("alpha%d beta%d gamma%d shared", i, i, i)
		docs[i] = model.NewDocument(model.ID(100+i), model.Text(text), nil)
	}
	return docs
}

func newIndexed(t *testing.T, cfg *config.Config, docs []model.Document, opts ...Option) *Embeddings {
	t.Helper()
	ctx := context.Background()
	emb, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, emb.Score(ctx, docs))
	require.NoError(t, emb.Index(ctx, docs))
	return emb
}

func TestNew(t *testing.T) {
	t.Run("Unconfigured", func(t *testing.T) {
		ctx := context.Background()
		emb, err := New(nil)
		require.NoError(t, err)
		assert.Nil(t, emb.Config())
		assert.Zero(t, emb.Len())
		assert.Equal(t, index.Kind(0), emb.Structure())

		assert.ErrorIs(t, emb.Score(ctx, corpus(1)), ErrNotConfigured)
		assert.ErrorIs(t, emb.Index(ctx, corpus(1)), ErrNotConfigured)
		_, err = emb.Transform(ctx, model.Query(model.Text("x")))
		assert.ErrorIs(t, err, ErrNotConfigured)
		_, err = emb.Search(ctx, model.Text("x"), 1)
		assert.ErrorIs(t, err, ErrNotConfigured)
		_, err = emb.Similarity(ctx, model.Text("x"), nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.ErrorIs(t, emb.SaveTo(ctx, blobstore.NewMemoryStore()), ErrNotConfigured)
	})

	t.Run("Defaults", func(t *testing.T) {
		emb, err := New(hashingConfig())
		require.NoError(t, err)
		cfg := emb.Config()
		assert.Equal(t, config.DefaultThreshold, cfg.Threshold)
		assert.Equal(t, config.DefaultPartitions, cfg.Partitions)
		assert.Equal(t, config.DefaultNProbe, cfg.NProbe)

		cfg.PCA = 7
		assert.Zero(t, emb.Config().PCA, "Config returns a copy")
	})

	tests := []struct {
		name string
		cfg  *config.Config
		key  string
	}{
		{"InvalidThreshold", &config.Config{Method: vectors.MethodHashing, Threshold: -1}, "threshold"},
		{"NegativePCA", &config.Config{Method: vectors.MethodHashing, PCA: -1}, "pca"},
		{"UnknownMethod", &config.Config{Method: "glove"}, "method"},
		{"MissingPath", &config.Config{Method: vectors.MethodWords}, "path"},
		{"UnknownScoring", &config.Config{Method: vectors.MethodHashing, Scoring: "lsi"}, "scoring"},
		{"UnknownCompression", &config.Config{Method: vectors.MethodHashing, Compression: "brotli"}, "compression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var cfgErr *ErrConfiguration
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	docs := corpus(40)
	emb := newIndexed(t, hashingConfig(), docs)

	assert.Equal(t, 40, emb.Len())
	assert.Equal(t, index.KindFlat, emb.Structure())

	for _, i := range []int{0, 17, 39} {
		results, err := emb.Search(ctx, docs[i].Content, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, *docs[i].ID, results[0].ID)
		assert.InDelta(t, 1, results[0].Score, 1e-5)
	}

	results, err := emb.Search(ctx, model.Text("alpha3 beta3"), 0)
	require.NoError(t, err)
	require.Len(t, results, DefaultLimit)
	assert.Equal(t, model.ID(103), results[0].ID)
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.ID < cur.ID))
	}

	results, err = emb.Search(ctx, model.Text("shared"), 100)
	require.NoError(t, err)
	assert.Len(t, results, 40)
}

func TestIndexTokens(t *testing.T) {
	ctx := context.Background()
	docs := []model.Document{
		model.NewDocument(1, model.Tokens("red", "apple"), nil),
		model.NewDocument(2, model.Tokens("green", "pear"), nil),
	}
	emb := newIndexed(t, hashingConfig(), docs)

	results, err := emb.Search(ctx, model.Tokens("green", "pear"), 1)
	require.NoError(t, err)
	assert.Equal(t, model.ID(2), results[0].ID)
}

func TestIndexPartitioned(t *testing.T) {
	ctx := context.Background()
	cfg := hashingConfig()
	cfg.Threshold = 50
	cfg.Partitions = 4
	cfg.NProbe = 2
	cfg.Seed = 7

	docs := corpus(120)
	emb := newIndexed(t, cfg, docs)
	assert.Equal(t, index.KindIVF, emb.Structure())

	for _, d := range docs[:20] {
		results, err := emb.Search(ctx, d.Content, 1)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, *d.ID, results[0].ID)
	}

	results, err := emb.Search(ctx, model.Text("shared"), 500)
	require.NoError(t, err)
	assert.Len(t, results, 120)
}

func TestIndexPartitionedLimit(t *testing.T) {
	ctx := context.Background()
	cfg := hashingConfig()
	cfg.Threshold = 50
	cfg.Partitions = 20
	cfg.NProbe = 2

	emb := newIndexed(t, cfg, corpus(200))
	require.Equal(t, index.KindIVF, emb.Structure())

	for _, limit := range []int{50, 199, 200, 1000} {
		results, err := emb.Search(ctx, model.Text("alpha7 shared"), limit)
		require.NoError(t, err)
		assert.Len(t, results, min(limit, 200), "limit=%d", limit)
	}
}

func TestIndexErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyCorpus", func(t *testing.T) {
		emb, err := New(hashingConfig())
		require.NoError(t, err)
		assert.ErrorIs(t, emb.Index(ctx, nil), ErrEmptyCorpus)
	})

	t.Run("MissingID", func(t *testing.T) {
		emb, err := New(hashingConfig())
		require.NoError(t, err)
		err = emb.Index(ctx, []model.Document{model.Query(model.Text("lonely document"))})
		assert.ErrorIs(t, err, vectors.ErrMissingID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		emb, err := New(hashingConfig())
		require.NoError(t, err)
		docs := corpus(2)
		docs[1].ID = docs[0].ID
		var dup *index.ErrDuplicateID
		assert.ErrorAs(t, emb.Index(ctx, docs), &dup)
	})

	t.Run("DegenerateKeepsPreviousIndex", func(t *testing.T) {
		emb := newIndexed(t, hashingConfig(), corpus(5))

		docs := append(corpus(3), model.NewDocument(9, model.Text("the and of"), nil))
		err := emb.Index(ctx, docs)
		assert.ErrorIs(t, err, ErrDegenerateVector)
		assert.Equal(t, 5, emb.Len())

		_, err = emb.Transform(ctx, model.Query(model.Text("it is")))
		assert.ErrorIs(t, err, ErrDegenerateVector)
	})

	t.Run("ComponentSpansDocument", func(t *testing.T) {
		// Two unrelated documents: the single principal component is one of
		// them, so removing it leaves a zero vector.
		emb, err := New(&config.Config{Method: "hashing", PCA: 1})
		require.NoError(t, err)
		docs := []model.Document{
			model.NewDocument(7, model.Text("red apples and green pears"), nil),
			model.NewDocument(8, model.Text("fast cars on empty roads"), nil),
		}
		err = emb.Index(ctx, docs)
		require.ErrorIs(t, err, ErrDegenerateVector)
		assert.Contains(t, err.Error(), "document")
		assert.Zero(t, emb.Len())
	})

	t.Run("InvalidComponents", func(t *testing.T) {
		cfg := hashingConfig()
		cfg.PCA = 50
		emb, err := New(cfg)
		require.NoError(t, err)

		var ic *ErrInvalidComponents
		require.ErrorAs(t, emb.Index(ctx, corpus(10)), &ic)
		assert.Equal(t, 50, ic.Requested)
		assert.Equal(t, 10, ic.Max)
	})

	t.Run("Cancelled", func(t *testing.T) {
		emb, err := New(hashingConfig())
		require.NoError(t, err)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, emb.Index(cctx, corpus(10)), context.Canceled)
		assert.Zero(t, emb.Len())
	})

	t.Run("NotIndexed", func(t *testing.T) {
		emb, err := New(hashingConfig())
		require.NoError(t, err)
		_, err = emb.Search(ctx, model.Text("alpha1"), 1)
		assert.ErrorIs(t, err, ErrNotIndexed)
		assert.ErrorIs(t, emb.SaveTo(ctx, blobstore.NewMemoryStore()), ErrNotIndexed)
	})
}

// fixedSource returns the vector stored for a document's first token.
type fixedSource struct {
	dim     int
	vectors map[string][]float32
}

func (s fixedSource) Dimension() int { return s.dim }

func (s fixedSource) Transform(_ context.Context, doc model.Document) ([]float32, error) {
	tokens := vectors.Tokens(doc.Content)
	if len(tokens) == 0 {
		return make([]float32, s.dim), nil
	}
	v, ok := s.vectors[tokens[0]]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", tokens[0])
	}
	return append([]float32(nil), v...), nil
}

func TestWithSource(t *testing.T) {
	ctx := context.Background()
	src := fixedSource{dim: 2, vectors: map[string][]float32{
		"east":  {1, 0},
		"north": {0, 3},
		"bad":   {1, 2, 3},
	}}
	emb, err := New(&config.Config{Method: "custom"}, WithSource(src))
	require.NoError(t, err)

	docs := []model.Document{
		model.NewDocument(1, model.Text("east"), nil),
		model.NewDocument(2, model.Text("north"), nil),
	}
	require.NoError(t, emb.Index(ctx, docs))

	v, err := emb.Transform(ctx, model.Query(model.Text("north")))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1}, v, 1e-6)

	_, err = emb.Transform(ctx, model.Query(model.Text("bad")))
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	err = emb.Index(ctx, append(docs, model.NewDocument(3, model.Text("bad"), nil)))
	assert.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, emb.Len())

	err = emb.Index(ctx, append(docs, model.NewDocument(3, model.Text("unknown"), nil)))
	assert.Error(t, err)
	assert.Equal(t, 2, emb.Len())
}

func TestBufferSize(t *testing.T) {
	ctx := context.Background()
	docs := corpus(30)
	small := newIndexed(t, hashingConfig(), docs, WithBufferSize(1))
	large := newIndexed(t, hashingConfig(), docs, WithBufferSize(0))

	a, err := small.Search(ctx, model.Text("alpha5 gamma9"), 5)
	require.NoError(t, err)
	b, err := large.Search(ctx, model.Text("alpha5 gamma9"), 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimilarity(t *testing.T) {
	ctx := context.Background()
	emb, err := New(hashingConfig())
	require.NoError(t, err)

	scores, err := emb.Similarity(ctx, model.Text("quick brown fox"), []model.Content{
		model.Text("lazy dog"),
		model.Text("quick brown fox"),
		model.Tokens("quick", "brown", "fox"),
	})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 1, scores[1], 1e-5)
	assert.InDelta(t, 1, scores[2], 1e-5)
	assert.Less(t, scores[0], scores[1])

	scores, err = emb.Similarity(ctx, model.Text("quick"), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)

	_, err = emb.Similarity(ctx, model.Text("quick"), []model.Content{model.Text("the")})
	assert.ErrorIs(t, err, ErrDegenerateVector)
}

func TestReducer(t *testing.T) {
	ctx := context.Background()
	cfg := hashingConfig()
	cfg.PCA = 1
	docs := corpus(25)
	emb := newIndexed(t, cfg, docs)

	for _, d := range docs[:5] {
		results, err := emb.Search(ctx, d.Content, 1)
		require.NoError(t, err)
		assert.Equal(t, *d.ID, results[0].ID)
	}

	// The shared token dominates the first component, so removing it makes
	// documents less alike.
	plain := newIndexed(t, hashingConfig(), docs)
	withPCA, err := emb.Similarity(ctx, docs[0].Content, []model.Content{docs[1].Content})
	require.NoError(t, err)
	without, err := plain.Similarity(ctx, docs[0].Content, []model.Content{docs[1].Content})
	require.NoError(t, err)
	assert.Less(t, withPCA[0], without[0])
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()

	configs := map[string]*config.Config{
		"Plain":   hashingConfig(),
		"Reducer": {Method: vectors.MethodHashing, Dimensions: 64, PCA: 2, Scoring: "bm25"},
		"SQ8":     {Method: vectors.MethodHashing, Dimensions: 64, Quantize: config.QuantizeSQ8, Compression: "zstd"},
		"IVF":     {Method: vectors.MethodHashing, Dimensions: 64, Threshold: 40, Partitions: 3, NProbe: 3, Scoring: "sif", Compression: "lz4"},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			docs := corpus(60)
			emb := newIndexed(t, cfg, docs)

			store := blobstore.NewMemoryStore()
			require.NoError(t, emb.SaveTo(ctx, store))

			loaded, err := New(nil)
			require.NoError(t, err)
			require.NoError(t, loaded.LoadFrom(ctx, store))

			assert.Equal(t, emb.Config(), loaded.Config())
			assert.Equal(t, emb.Len(), loaded.Len())
			assert.Equal(t, emb.Structure(), loaded.Structure())

			query := model.Text("alpha4 beta7 shared")
			want, err := emb.Search(ctx, query, 5)
			require.NoError(t, err)
			got, err := loaded.Search(ctx, query, 5)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			wv, err := emb.Transform(ctx, model.Query(query))
			require.NoError(t, err)
			gv, err := loaded.Transform(ctx, model.Query(query))
			require.NoError(t, err)
			assert.Equal(t, wv, gv)
		})
	}
}

func TestSaveLayout(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	cfg := hashingConfig()
	cfg.PCA = 1
	cfg.Scoring = "tfidf"
	require.NoError(t, newIndexed(t, cfg, corpus(10)).SaveTo(ctx, store))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "embeddings", "lsa", "scoring/model"}, names)

	data, err := store.Get(ctx, ArtifactConfig)
	require.NoError(t, err)
	c, err := codec.Decode(data, &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, codec.Default.Name(), c.Name())

	// Saving a plain configuration over it removes the stale artifacts.
	require.NoError(t, newIndexed(t, hashingConfig(), corpus(10)).SaveTo(ctx, store))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "embeddings"}, names)
}

func TestSaveLoadDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")

	cfg := hashingConfig()
	cfg.Scoring = "bm25"
	docs := corpus(20)
	emb := newIndexed(t, cfg, docs, WithCodec(codec.JSON{}))
	require.NoError(t, emb.Save(ctx, dir))

	for _, name := range []string{"config", "embeddings", filepath.Join("scoring", "model")} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := Load(ctx, dir)
	require.NoError(t, err)
	results, err := loaded.Search(ctx, docs[3].Content, 1)
	require.NoError(t, err)
	assert.Equal(t, *docs[3].ID, results[0].ID)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyDirectory", func(t *testing.T) {
		_, err := Load(ctx, t.TempDir())
		var missing *ErrMissingArtifact
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, ArtifactConfig, missing.Name)
	})

	tests := []struct {
		name     string
		cfg      *config.Config
		artifact string
	}{
		{"Embeddings", hashingConfig(), ArtifactEmbeddings},
		{"LSA", &config.Config{Method: vectors.MethodHashing, PCA: 1}, ArtifactLSA},
		{"Scoring", &config.Config{Method: vectors.MethodHashing, Scoring: "bm25"}, "scoring/model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			require.NoError(t, newIndexed(t, tt.cfg, corpus(10)).SaveTo(ctx, store))
			require.NoError(t, store.Delete(ctx, tt.artifact))

			emb := newIndexed(t, hashingConfig(), corpus(3))
			err := emb.LoadFrom(ctx, store)
			var missing *ErrMissingArtifact
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.artifact, missing.Name)
			assert.True(t, errors.Is(err, blobstore.ErrNotFound))

			// The previous state survives a failed load.
			assert.Equal(t, 3, emb.Len())
		})
	}

	t.Run("Corrupt", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, newIndexed(t, hashingConfig(), corpus(10)).SaveTo(ctx, store))
		require.NoError(t, store.Put(ctx, ArtifactEmbeddings, []byte("not an index")))
		emb, err := New(nil)
		require.NoError(t, err)
		assert.Error(t, emb.LoadFrom(ctx, store))
		assert.Nil(t, emb.Config())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, newIndexed(t, hashingConfig(), corpus(10)).SaveTo(ctx, store))

		src := fixedSource{dim: 8}
		emb, err := New(nil, WithSource(src))
		require.NoError(t, err)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, emb.LoadFrom(ctx, store), &dm)
		assert.Equal(t, 256, dm.Expected)
		assert.Equal(t, 8, dm.Actual)
	})
}

func TestWordsSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "words.vec")
	require.NoError(t, os.WriteFile(path, []byte(`6 4
virus 1 0 0 0.1
cases 0.9 0.1 0 0
invasion 0 1 0 0.1
coast 0 0.9 0.1 0
market 0 0 1 0.1
stocks 0 0.1 0.9 0
`), 0o600))

	cfg := &config.Config{Path: path, Scoring: "bm25"}
	docs := []model.Document{
		model.NewDocument(10, model.Text("Virus cases rise"), nil),
		model.NewDocument(20, model.Text("Invasion craft along the coast"), nil),
		model.NewDocument(30, model.Text("Stocks market rally"), nil),
	}
	emb := newIndexed(t, cfg, docs)
	assert.Equal(t, vectors.MethodWords, emb.Config().Method)

	results, err := emb.Search(ctx, model.Text("stocks"), 1)
	require.NoError(t, err)
	assert.Equal(t, model.ID(30), results[0].ID)

	dir := t.TempDir()
	require.NoError(t, emb.Save(ctx, dir))
	loaded, err := Load(ctx, dir)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, model.Text("coast"), 1)
	require.NoError(t, err)
	assert.Equal(t, model.ID(20), got[0].ID)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	emb := newIndexed(t, hashingConfig(), corpus(5), WithMetricsCollector(metrics), WithLogger(nil))

	_, err := emb.Search(ctx, model.Text("alpha1"), 2)
	require.NoError(t, err)
	_, err = emb.Search(ctx, model.Text("the"), 2)
	require.Error(t, err)
	_, err = emb.Similarity(ctx, model.Text("alpha1"), []model.Content{model.Text("beta2")})
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.IndexCount)
	assert.Equal(t, int64(5), stats.IndexDocuments)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(1), stats.TransformCount)
	assert.Equal(t, int64(2), stats.TransformDocuments)
}

func TestConcurrentSearchDuringIndex(t *testing.T) {
	ctx := context.Background()
	docs := corpus(50)
	emb := newIndexed(t, hashingConfig(), docs)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				d := docs[(i*20+j)%len(docs)]
				results, err := emb.Search(ctx, d.Content, 1)
				if assert.NoError(t, err) && assert.NotEmpty(t, results) {
					assert.Equal(t, *d.ID, results[0].ID)
				}
			}
		}()
	}
	for range 3 {
		require.NoError(t, emb.Index(ctx, docs))
	}
	wg.Wait()
}

// gatedSource blocks its first Transform until release is closed.
type gatedSource struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *gatedSource) Dimension() int { return 2 }

func (s *gatedSource) Transform(_ context.Context, _ model.Document) ([]float32, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return []float32{1, 1}, nil
}

func TestScoreWaitsForIndex(t *testing.T) {
	ctx := context.Background()
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	emb, err := New(&config.Config{Method: "custom", Scoring: "bm25"}, WithSource(src))
	require.NoError(t, err)

	docs := corpus(4)
	indexErr := make(chan error, 1)
	go func() { indexErr <- emb.Index(ctx, docs) }()
	<-src.started

	scoreErr := make(chan error, 1)
	go func() { scoreErr <- emb.Score(ctx, docs) }()

	select {
	case <-scoreErr:
		t.Fatal("Score finished while Index was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(src.release)
	require.NoError(t, <-indexErr)
	require.NoError(t, <-scoreErr)
	assert.Equal(t, 4, emb.Len())
}
