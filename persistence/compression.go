package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the compression algorithm applied to a whole artifact.
type Compression uint8

const (
	// CompressionNone stores the artifact as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

// envelopeHeaderSize is [type u8][uncompressed size u64].
const envelopeHeaderSize = 9

// maxEnvelopeSize caps the declared uncompressed size (16 GiB).
const maxEnvelopeSize = 16 << 30

// String returns the stable name of the compression type.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Compress wraps data in a compression envelope.
// If compression does not help the payload is stored uncompressed.
func Compress(data []byte, c Compression) ([]byte, error) {
	var payload []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			payload = buf[:n]
		}
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}

	if payload == nil || len(payload) >= len(data) {
		c = CompressionNone
		payload = data
	}

	out := make([]byte, envelopeHeaderSize+len(payload))
	out[0] = byte(c)
	binary.LittleEndian.PutUint64(out[1:], uint64(len(data)))
	copy(out[envelopeHeaderSize:], payload)
	return out, nil
}

// Decompress unwraps an envelope produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < envelopeHeaderSize {
		return nil, errors.New("envelope too small for header")
	}
	c := Compression(data[0])
	size := binary.LittleEndian.Uint64(data[1:])
	if size > maxEnvelopeSize {
		return nil, &ErrCorrupt{Reason: fmt.Sprintf("declared size %d too large", size)}
	}
	payload := data[envelopeHeaderSize:]

	switch c {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, &ErrCorrupt{Reason: "stored size mismatch"}
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint64(n) != size {
			return nil, &ErrCorrupt{Reason: "decompressed size mismatch"}
		}
		return out, nil
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if uint64(len(out)) != size {
			return nil, &ErrCorrupt{Reason: "decompressed size mismatch"}
		}
		return out, nil
	default:
		return nil, &ErrCorrupt{Reason: fmt.Sprintf("unknown compression %d", c)}
	}
}
