package flat

import (
	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/persistence"
	"github.com/hupe1980/sentvec/quantization"
)

// WriteBody serializes the index:
//
//	[dimension u32][quantized u8][sq bounds?][ids][vectors]
func (f *Flat) WriteBody(w *persistence.Writer) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	w.Uint32(uint32(f.opts.Dimension))
	if f.sq == nil {
		w.Uint8(0)
	} else {
		w.Uint8(1)
		f.sq.Write(w)
	}
	f.ids.Write(w)
	f.vectors.Write(w)
}

func load(r *persistence.Reader) (index.Index, error) {
	dim := int(r.Uint32())
	quantized := r.Uint8()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, &persistence.ErrCorrupt{Reason: "flat: invalid dimension"}
	}

	opts := index.DefaultOptions
	opts.Dimension = dim
	opts.Quantize = quantized != 0

	var sq *quantization.ScalarQuantizer
	if opts.Quantize {
		var err error
		if sq, err = quantization.ReadScalarQuantizer(r, dim); err != nil {
			return nil, err
		}
	}

	ids, err := index.ReadIDs(r)
	if err != nil {
		return nil, err
	}
	vectors, err := index.ReadVectors(r, dim, sq)
	if err != nil {
		return nil, err
	}
	if vectors.Len() != ids.Len() {
		return nil, &persistence.ErrCorrupt{Reason: "flat: id and vector counts differ"}
	}

	return &Flat{opts: opts, ids: ids, sq: sq, vectors: vectors}, nil
}
