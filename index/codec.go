package index

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hupe1980/sentvec/persistence"
)

// Encode writes idx to w as a checksummed artifact in a compression envelope.
func Encode(w io.Writer, idx Index, c persistence.Compression) error {
	var buf bytes.Buffer
	bw := persistence.NewWriter(&buf, persistence.MagicIndex)
	bw.Uint8(uint8(idx.Kind()))
	idx.WriteBody(bw)
	if err := bw.Close(); err != nil {
		return fmt.Errorf("encode %v index: %w", idx.Kind(), err)
	}

	data, err := persistence.Compress(buf.Bytes(), c)
	if err != nil {
		return fmt.Errorf("compress %v index: %w", idx.Kind(), err)
	}
	_, err = w.Write(data)
	return err
}

// Decode reads an index written by Encode.
func Decode(r io.Reader) (Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw, err := persistence.Decompress(data)
	if err != nil {
		return nil, err
	}

	br, err := persistence.NewReader(bytes.NewReader(raw), persistence.MagicIndex)
	if err != nil {
		return nil, err
	}
	kind := Kind(br.Uint8())
	if err := br.Err(); err != nil {
		return nil, err
	}

	reg, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	idx, err := reg.loader(br)
	if err != nil {
		return nil, fmt.Errorf("decode %v index: %w", kind, err)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return idx, nil
}
