package sentvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sentvec/blobstore"
	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/distance"
	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/reducer"
)

var (
	// ErrEmptyCorpus is returned when Index receives no documents.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrDegenerateVector is returned when a vector has zero L2 norm after
	// principal component removal and cannot be normalized.
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrNotConfigured is returned by operations that need a configuration
	// on an instance created without one and never loaded.
	ErrNotConfigured = errors.New("embeddings not configured")

	// ErrNotIndexed is returned by Search and Save before Index or Load.
	ErrNotIndexed = errors.New("embeddings not indexed")
)

// ErrDimensionMismatch indicates a vector whose width differs from the
// width fixed at build time.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrMissingArtifact indicates that a required artifact is absent at load time.
type ErrMissingArtifact struct {
	Name  string
	cause error
}

func (e *ErrMissingArtifact) Error() string {
	return fmt.Sprintf("missing artifact %q", e.Name)
}

func (e *ErrMissingArtifact) Unwrap() error { return e.cause }

// ErrConfiguration indicates a missing or invalid configuration key.
type ErrConfiguration struct {
	Key    string
	Reason string
	cause  error
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration %q: %s", e.Key, e.Reason)
}

func (e *ErrConfiguration) Unwrap() error { return e.cause }

// ErrInvalidComponents indicates a pca setting that the corpus cannot
// support. It is reported as a configuration error on key "pca".
type ErrInvalidComponents struct {
	Requested int
	Max       int
	cause     error
}

func (e *ErrInvalidComponents) Error() string {
	return fmt.Sprintf("configuration \"pca\": %d components requested, corpus supports at most %d", e.Requested, e.Max)
}

func (e *ErrInvalidComponents) Unwrap() error { return e.cause }

func missingArtifact(name string, err error) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return &ErrMissingArtifact{Name: name, cause: err}
	}
	return fmt.Errorf("read %s: %w", name, err)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var cfg *config.Error
	if errors.As(err, &cfg) {
		return &ErrConfiguration{Key: cfg.Key, Reason: cfg.Reason, cause: err}
	}
	var ic *reducer.ErrInvalidComponents
	if errors.As(err, &ic) {
		return &ErrInvalidComponents{Requested: ic.Requested, Max: ic.Max, cause: err}
	}

	var idm *index.ErrDimensionMismatch
	if errors.As(err, &idm) {
		return &ErrDimensionMismatch{Expected: idm.Expected, Actual: idm.Actual, cause: err}
	}
	var rdm *reducer.ErrDimensionMismatch
	if errors.As(err, &rdm) {
		return &ErrDimensionMismatch{Expected: rdm.Expected, Actual: rdm.Actual, cause: err}
	}

	if errors.Is(err, distance.ErrDegenerateVector) {
		return fmt.Errorf("%w: %w", ErrDegenerateVector, err)
	}

	return err
}
