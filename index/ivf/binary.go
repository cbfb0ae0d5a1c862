package ivf

import (
	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/persistence"
	"github.com/hupe1980/sentvec/quantization"
)

// maxPartitions caps the partition count read from an artifact.
const maxPartitions = 1 << 20

// WriteBody serializes the index:
//
//	[dimension u32][nprobe u32][iterations u32][seed u64][quantized u8][sq bounds?]
//	[partitions u32][centroids]{[count u64][ids][vectors]}*
func (x *IVF) WriteBody(w *persistence.Writer) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	w.Uint32(uint32(x.opts.Dimension))
	w.Uint32(uint32(x.opts.NProbe))
	w.Uint32(uint32(x.opts.Iterations))
	w.Uint64(uint64(x.opts.Seed))
	if x.sq == nil {
		w.Uint8(0)
	} else {
		w.Uint8(1)
		x.sq.Write(w)
	}

	w.Uint32(uint32(len(x.partitions)))
	if x.centroids != nil {
		w.Float32s(x.centroids.Data)
	}
	buf := make([]uint64, 0)
	for _, p := range x.partitions {
		buf = buf[:0]
		for _, id := range p.ids {
			buf = append(buf, uint64(id))
		}
		w.Uint64(uint64(len(buf)))
		w.Uint64s(buf)
		p.vectors.Write(w)
	}
}

func load(r *persistence.Reader) (index.Index, error) {
	opts := index.DefaultOptions
	opts.Dimension = int(r.Uint32())
	opts.NProbe = int(r.Uint32())
	opts.Iterations = int(r.Uint32())
	opts.Seed = int64(r.Uint64())
	opts.Quantize = r.Uint8() != 0
	if err := r.Err(); err != nil {
		return nil, err
	}
	if opts.Dimension <= 0 || opts.NProbe <= 0 {
		return nil, &persistence.ErrCorrupt{Reason: "ivf: invalid header"}
	}

	var sq *quantization.ScalarQuantizer
	if opts.Quantize {
		var err error
		if sq, err = quantization.ReadScalarQuantizer(r, opts.Dimension); err != nil {
			return nil, err
		}
	}

	nparts := int(r.Uint32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if nparts > maxPartitions {
		return nil, &persistence.ErrCorrupt{Reason: "ivf: partition count too large"}
	}

	x := &IVF{opts: opts, ids: index.NewIDs(), sq: sq}
	if nparts == 0 {
		return x, nil
	}
	opts.Partitions = nparts
	x.opts = opts

	x.centroids = matrix.New(nparts, opts.Dimension)
	r.Float32sInto(x.centroids.Data)
	x.partitions = make([]partition, nparts)

	for i := range x.partitions {
		n := r.Uint64()
		if err := r.Err(); err != nil {
			return nil, err
		}
		if n > 1<<32 {
			return nil, &persistence.ErrCorrupt{Reason: "ivf: partition too large"}
		}
		raw := make([]uint64, n)
		r.Uint64sInto(raw)
		vectors, err := index.ReadVectors(r, opts.Dimension, sq)
		if err != nil {
			return nil, err
		}
		if uint64(vectors.Len()) != n {
			return nil, &persistence.ErrCorrupt{Reason: "ivf: id and vector counts differ"}
		}

		ids := make([]model.ID, n)
		for j, id := range raw {
			ids[j] = model.ID(id)
		}
		if err := x.ids.Check(ids); err != nil {
			return nil, &persistence.ErrCorrupt{Reason: err.Error()}
		}
		x.ids.Append(ids...)
		x.partitions[i] = partition{ids: ids, vectors: vectors}
	}
	return x, nil
}
