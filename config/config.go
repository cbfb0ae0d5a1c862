// Package config defines the embeddings configuration, its defaults and
// validation, and how it is read from YAML files and persisted as an artifact.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/sentvec/codec"
	"github.com/hupe1980/sentvec/persistence"
)

// Default tunables.
const (
	DefaultMethod     = "words"
	DefaultThreshold  = 5000
	DefaultPartitions = 100
	DefaultNProbe     = 6
	DefaultIterations = 25
)

// QuantizeSQ8 enables 8-bit scalar quantization of stored vectors.
const QuantizeSQ8 = "sq8"

// Error reports an invalid or missing configuration key.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %q: %s", e.Key, e.Reason)
}

// Config is the immutable configuration of an embeddings instance.
type Config struct {
	// Path locates the vector source, e.g. a word-vector file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Method selects the vector source implementation.
	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// Scoring selects the token weighting model. Empty disables scoring.
	Scoring string `yaml:"scoring,omitempty" json:"scoring,omitempty"`

	// PCA is the number of principal components removed. Zero disables the reducer.
	PCA int `yaml:"pca,omitempty" json:"pca,omitempty"`

	// Dimensions sets the output width of sources that have no file, such as hashing.
	Dimensions int `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`

	// Threshold is the corpus size at which the partitioned index replaces the flat one.
	Threshold int `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Partitions is the number of IVF partitions.
	Partitions int `yaml:"partitions,omitempty" json:"partitions,omitempty"`

	// NProbe is the number of IVF partitions scanned per query.
	NProbe int `yaml:"nprobe,omitempty" json:"nprobe,omitempty"`

	// Iterations bounds k-means training.
	Iterations int `yaml:"iterations,omitempty" json:"iterations,omitempty"`

	// Seed makes partition training reproducible.
	Seed int64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Quantize selects the stored vector encoding: "" (float32) or "sq8".
	Quantize string `yaml:"quantize,omitempty" json:"quantize,omitempty"`

	// Compression selects the index artifact envelope: "none", "lz4" or "zstd".
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"`
}

// Default returns a configuration with every tunable at its default.
func Default() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults returns a copy of c with unset tunables filled in.
func (c *Config) WithDefaults() *Config {
	out := c.Clone()
	if out.Method == "" {
		out.Method = DefaultMethod
	}
	if out.Threshold == 0 {
		out.Threshold = DefaultThreshold
	}
	if out.Partitions == 0 {
		out.Partitions = DefaultPartitions
	}
	if out.NProbe == 0 {
		out.NProbe = DefaultNProbe
	}
	if out.Iterations == 0 {
		out.Iterations = DefaultIterations
	}
	if out.Compression == "" {
		out.Compression = persistence.CompressionNone.String()
	}
	return out
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// Validate checks the value ranges of c. Source-specific keys such as path
// are checked when the source is created.
func (c *Config) Validate() error {
	switch {
	case c.Method == "":
		return &Error{Key: "method", Reason: "required"}
	case c.PCA < 0:
		return &Error{Key: "pca", Reason: fmt.Sprintf("must not be negative, got %d", c.PCA)}
	case c.Dimensions < 0:
		return &Error{Key: "dimensions", Reason: fmt.Sprintf("must not be negative, got %d", c.Dimensions)}
	case c.Threshold <= 0:
		return &Error{Key: "threshold", Reason: fmt.Sprintf("must be positive, got %d", c.Threshold)}
	case c.Partitions <= 0:
		return &Error{Key: "partitions", Reason: fmt.Sprintf("must be positive, got %d", c.Partitions)}
	case c.NProbe <= 0:
		return &Error{Key: "nprobe", Reason: fmt.Sprintf("must be positive, got %d", c.NProbe)}
	case c.Iterations <= 0:
		return &Error{Key: "iterations", Reason: fmt.Sprintf("must be positive, got %d", c.Iterations)}
	case c.Quantize != "" && c.Quantize != QuantizeSQ8:
		return &Error{Key: "quantize", Reason: fmt.Sprintf("unknown encoding %q", c.Quantize)}
	}
	if _, err := persistence.ParseCompression(c.Compression); err != nil {
		return &Error{Key: "compression", Reason: err.Error()}
	}
	return nil
}

// CompressionType returns the parsed compression setting.
func (c *Config) CompressionType() persistence.Compression {
	comp, err := persistence.ParseCompression(c.Compression)
	if err != nil {
		return persistence.CompressionNone
	}
	return comp
}

// Parse decodes YAML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	out := cfg.WithDefaults()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// YAML renders c as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Encode serializes c as the config artifact using the default codec.
func (c *Config) Encode() ([]byte, error) {
	return codec.Encode(codec.Default, c)
}

// Decode reads a config artifact written by Encode.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if _, err := codec.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	out := cfg.WithDefaults()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
