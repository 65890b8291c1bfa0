package frame

// TimeVector is an append-only (except for Truncate) sequence of epoch
// millisecond timestamps. Its ID never changes.
type TimeVector struct {
	id     uint64
	values []int64
}

// NewTimeVector copies values into a vector with a new handle.
func NewTimeVector(values ...int64) *TimeVector {
	v := &TimeVector{id: nextVectorID(), values: make([]int64, len(values))}
	copy(v.values, values)
	return v
}

// ID returns the identity handle of the vector.
func (v *TimeVector) ID() uint64 { return v.id }

// Len returns the number of timestamps.
func (v *TimeVector) Len() int { return len(v.values) }

// At returns the timestamp at index i.
func (v *TimeVector) At(i int) int64 { return v.values[i] }

// Append adds timestamps in place.
func (v *TimeVector) Append(ts ...int64) {
	v.values = append(v.values, ts...)
}

// Truncate keeps the first n timestamps in place.
func (v *TimeVector) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(v.values) {
		v.values = v.values[:n]
	}
}

// Values returns a copy of the timestamps.
func (v *TimeVector) Values() []int64 {
	out := make([]int64, len(v.values))
	copy(out, v.values)
	return out
}

// NumberVector holds float64 values.
type NumberVector struct {
	values []float64
}

// NewNumberVector copies values into a new vector.
func NewNumberVector(values ...float64) *NumberVector {
	v := &NumberVector{values: make([]float64, len(values))}
	copy(v.values, values)
	return v
}

func (v *NumberVector) Len() int { return len(v.values) }

func (v *NumberVector) At(i int) float64 { return v.values[i] }

func (v *NumberVector) Append(vals ...float64) {
	v.values = append(v.values, vals...)
}

func (v *NumberVector) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(v.values) {
		v.values = v.values[:n]
	}
}

func (v *NumberVector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}
