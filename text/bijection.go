package text

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNotBijective is returned when an insertion would map one key or one
// value twice.
var ErrNotBijective = errors.New("insertion breaks bijection")

// Bijection is a string <-> int32 dictionary kept as two maps that are
// only ever updated together.
type Bijection struct {
	forward map[string]int32
	reverse map[int32]string
}

func NewBijection() *Bijection {
	return &Bijection{
		forward: map[string]int32{},
		reverse: map[int32]string{},
	}
}

// BijectionFrom builds a Bijection from m. m itself is always
// one-to-one in keys, so only duplicate values can fail.
func BijectionFrom(m map[string]int32) (*Bijection, error) {
	b := NewBijection()
	// Insert in key order so the reported conflict is stable.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := b.Insert(k, m[k]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Insert binds key and value. Re-inserting an identical pair is a no-op.
func (b *Bijection) Insert(key string, value int32) error {
	if v, ok := b.forward[key]; ok {
		if v == value {
			return nil
		}
		return errors.Wrapf(ErrNotBijective, "key %q already bound to %d", key, v)
	}
	if k, ok := b.reverse[value]; ok {
		return errors.Wrapf(ErrNotBijective, "value %d already bound to %q", value, k)
	}
	b.forward[key] = value
	b.reverse[value] = key
	return nil
}

// Value looks up the value bound to key.
func (b *Bijection) Value(key string) (int32, bool) {
	v, ok := b.forward[key]
	return v, ok
}

// ValueOr returns fallback when key is absent.
func (b *Bijection) ValueOr(key string, fallback int32) int32 {
	if v, ok := b.forward[key]; ok {
		return v
	}
	return fallback
}

// Key looks up the key bound to value.
func (b *Bijection) Key(value int32) (string, bool) {
	k, ok := b.reverse[value]
	return k, ok
}

func (b *Bijection) Len() int { return len(b.forward) }

// Keys returns the keys ordered by value.
func (b *Bijection) Keys() []string {
	vs := b.Values()
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = b.reverse[v]
	}
	return out
}

// Values returns the values in ascending order.
func (b *Bijection) Values() []int32 {
	out := make([]int32, 0, len(b.reverse))
	for v := range b.reverse {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map returns a copy of the forward mapping.
func (b *Bijection) Map() map[string]int32 {
	out := make(map[string]int32, len(b.forward))
	for k, v := range b.forward {
		out[k] = v
	}
	return out
}
