package vectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/model"
)

// MethodWords is the registry name of the word-vector source.
const MethodWords = "words"

func init() {
	Register(MethodWords, func(opts Options) (Source, error) {
		return OpenWords(opts.Path, opts.Scoring)
	})
}

// maxLine bounds a single line of a word-vector file.
const maxLine = 1 << 20

// Vocabulary holds word vectors in one contiguous slice.
type Vocabulary struct {
	dim   int
	index map[string]int
	data  []float32
}

// Dimension returns the width of every word vector.
func (v *Vocabulary) Dimension() int { return v.dim }

// Len returns the number of words.
func (v *Vocabulary) Len() int { return len(v.index) }

// Lookup returns the vector of word. The slice aliases internal storage.
func (v *Vocabulary) Lookup(word string) ([]float32, bool) {
	i, ok := v.index[word]
	if !ok {
		return nil, false
	}
	return v.data[i*v.dim : (i+1)*v.dim], true
}

// ReadVocabulary parses word vectors in the text ".vec" layout: an optional
// "count dimension" header line followed by one "word v1 ... vd" line per word.
// Later duplicates of a word are ignored.
func ReadVocabulary(r io.Reader) (*Vocabulary, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	v := &Vocabulary{index: make(map[string]int)}
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				dim, err := strconv.Atoi(fields[1])
				if err != nil || dim <= 0 {
					return nil, fmt.Errorf("vectors: line 1: invalid header %q", sc.Text())
				}
				v.dim = dim
				continue
			}
		}
		if v.dim == 0 {
			v.dim = len(fields) - 1
			if v.dim <= 0 {
				return nil, fmt.Errorf("vectors: line %d: no values", line)
			}
		}
		if len(fields) != v.dim+1 {
			return nil, fmt.Errorf("vectors: line %d: got %d values, want %d", line, len(fields)-1, v.dim)
		}
		if _, dup := v.index[fields[0]]; dup {
			continue
		}
		for _, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("vectors: line %d: %w", line, err)
			}
			v.data = append(v.data, float32(x))
		}
		v.index[fields[0]] = len(v.index)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vectors: read: %w", err)
	}
	if len(v.index) == 0 {
		return nil, errors.New("vectors: empty vocabulary")
	}
	return v, nil
}

// LoadVocabulary reads a word-vector file. Names ending in ".gz" or ".zst"
// are decompressed while reading.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("vectors: %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("vectors: %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	return ReadVocabulary(bufio.NewReaderSize(r, 256*1024))
}

// Words averages the vectors of a document's known tokens.
type Words struct {
	vocab   *Vocabulary
	scoring Weigher
}

// NewWords creates a source over an already loaded vocabulary.
func NewWords(vocab *Vocabulary, scoring Weigher) *Words {
	return &Words{vocab: vocab, scoring: scoring}
}

// OpenWords loads the vocabulary at path and creates a source over it.
func OpenWords(path string, scoring Weigher) (*Words, error) {
	if path == "" {
		return nil, &config.Error{Key: "path", Reason: "required by the words source"}
	}
	vocab, err := LoadVocabulary(path)
	if err != nil {
		return nil, err
	}
	return NewWords(vocab, scoring), nil
}

// Dimension implements Source.
func (w *Words) Dimension() int { return w.vocab.dim }

// Vocabulary returns the underlying vocabulary.
func (w *Words) Vocabulary() *Vocabulary { return w.vocab }

// Transform implements Source. Tokens missing from the vocabulary are
// skipped. The average is weighted when the scoring model yields a positive
// total weight for the known tokens; otherwise it is the plain mean. A
// document without known tokens maps to the zero vector.
func (w *Words) Transform(ctx context.Context, doc model.Document) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := Tokens(doc.Content)
	tw := weights(w.scoring, tokens)

	dim := w.vocab.dim
	weighted := make([]float64, dim)
	plain := make([]float64, dim)
	var total float64
	known := 0
	for i, tok := range tokens {
		vec, ok := w.vocab.Lookup(tok)
		if !ok {
			continue
		}
		known++
		weight := 1.0
		if tw != nil {
			weight = float64(tw[i])
		}
		total += weight
		for j, x := range vec {
			weighted[j] += weight * float64(x)
			plain[j] += float64(x)
		}
	}

	out := make([]float32, dim)
	switch {
	case known == 0:
	case total > 0:
		for j := range out {
			out[j] = float32(weighted[j] / total)
		}
	default:
		for j := range out {
			out[j] = float32(plain[j] / float64(known))
		}
	}
	return out, nil
}
