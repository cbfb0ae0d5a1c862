package scoring

import "math"

// Registry names.
const (
	NameBM25  = "bm25"
	NameTFIDF = "tfidf"
	NameSIF   = "sif"
)

// Default parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
	DefaultA  = 1e-3
)

type bm25 struct {
	k1, b float64
}

// NewBM25 creates a BM25 model.
func NewBM25(k1, b float64) *Scoring {
	return newScoring(NameBM25, bm25{k1: k1, b: b})
}

// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
func (bm25) idf(total, df float64) float64 {
	return math.Log(1 + (total-df+0.5)/(df+0.5))
}

func (f bm25) weight(s *stats, _ string, tf, idf float64, length int) float64 {
	avgdl := s.avgdl
	if avgdl == 0 {
		avgdl = 1
	}
	k := f.k1 * ((1 - f.b) + f.b*float64(length)/avgdl)
	return idf * (tf * (f.k1 + 1)) / (tf + k)
}

type tfidf struct{}

// NewTFIDF creates a TF-IDF model.
func NewTFIDF() *Scoring {
	return newScoring(NameTFIDF, tfidf{})
}

func (tfidf) idf(total, df float64) float64 {
	return math.Log((total+1)/(df+1)) + 1
}

func (tfidf) weight(_ *stats, _ string, tf, idf float64, length int) float64 {
	return idf * math.Sqrt(tf) / math.Sqrt(float64(length))
}

type sif struct {
	a float64
}

// NewSIF creates a smooth inverse frequency model.
func NewSIF(a float64) *Scoring {
	return newScoring(NameSIF, sif{a: a})
}

func (sif) idf(total, df float64) float64 {
	return math.Log((total+1)/(df+1)) + 1
}

// SIF ignores document statistics and uses the corpus probability of the token.
func (f sif) weight(s *stats, token string, _, _ float64, _ int) float64 {
	if s.tokens == 0 {
		return 1
	}
	p := float64(s.wordfreq[token]) / float64(s.tokens)
	return f.a / (f.a + p)
}
