package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/persistence"
)

// maxElements caps counts read from an artifact.
const maxElements = 1 << 32

// IDs is an insertion-ordered id list with a bitmap for membership.
type IDs struct {
	list []uint64
	set  *roaring64.Bitmap
}

// NewIDs creates an empty id list.
func NewIDs() *IDs {
	return &IDs{set: roaring64.New()}
}

// Len returns the number of ids.
func (s *IDs) Len() int { return len(s.list) }

// At returns the id at position i.
func (s *IDs) At(i int) model.ID { return model.ID(s.list[i]) }

// Contains reports whether id is present.
func (s *IDs) Contains(id model.ID) bool { return s.set.Contains(uint64(id)) }

// Check returns *ErrDuplicateID for the first id that is already present
// or repeats within ids.
func (s *IDs) Check(ids []model.ID) error {
	batch := roaring64.New()
	for _, id := range ids {
		if s.set.Contains(uint64(id)) || !batch.CheckedAdd(uint64(id)) {
			return &ErrDuplicateID{ID: id}
		}
	}
	return nil
}

// Append adds ids without checking them.
func (s *IDs) Append(ids ...model.ID) {
	for _, id := range ids {
		s.list = append(s.list, uint64(id))
		s.set.Add(uint64(id))
	}
}

// Write emits the count followed by the ids in order.
func (s *IDs) Write(w *persistence.Writer) {
	w.Uint64(uint64(len(s.list)))
	w.Uint64s(s.list)
}

// ReadIDs reads ids written by Write. Duplicates are reported as corruption.
func ReadIDs(r *persistence.Reader) (*IDs, error) {
	n := r.Uint64()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n > maxElements {
		return nil, &persistence.ErrCorrupt{Reason: "id count too large"}
	}
	list := make([]uint64, n)
	r.Uint64sInto(list)
	if err := r.Err(); err != nil {
		return nil, err
	}

	s := &IDs{list: list, set: roaring64.New()}
	s.set.AddMany(list)
	if s.set.GetCardinality() != n {
		return nil, &persistence.ErrCorrupt{Reason: "duplicate ids"}
	}
	return s, nil
}
