package fixtures

import (
	"encoding/binary"
	"io"
	"math/rand"
)

// Reader is a deterministic io.Reader backed by a math/rand RNG. faker
// draws UUIDs and other crypto-sourced values from it.
type Reader struct {
	r *rand.Rand
}

// NewReader returns a deterministic reader seeded by an integer.
func NewReader(seed int64) io.Reader {
	return &Reader{r: rand.New(rand.NewSource(seed))}
}

// Read fills p with pseudorandom bytes.
func (r *Reader) Read(p []byte) (int, error) {
	var buf [8]byte
	for i := 0; i < len(p); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], uint64(r.r.Int63()))
		copy(p[i:], buf[:])
	}
	return len(p), nil
}
