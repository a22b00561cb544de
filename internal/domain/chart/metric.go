package chart

// Metric is a level or a note count. A Metric is either known (a positive
// value) or withheld. Storage encodes withheld as 0; that encoding stays at
// the storage and display boundaries and never reaches arithmetic.
type Metric struct {
	value int
	known bool
}

// Known returns a known metric. Non-positive values are withheld.
func Known(v int) Metric {
	if v <= 0 {
		return Metric{}
	}
	return Metric{value: v, known: true}
}

// Withheld returns a metric whose value is not revealed.
func Withheld() Metric { return Metric{} }

// MetricFromRaw decodes the storage encoding (0 = withheld).
func MetricFromRaw(v int) Metric { return Known(v) }

// Value returns the value and whether it is known.
func (m Metric) Value() (int, bool) { return m.value, m.known }

// IsKnown reports whether the value is revealed.
func (m Metric) IsKnown() bool { return m.known }

// Raw returns the storage encoding: the value, or 0 when withheld.
func (m Metric) Raw() int {
	if !m.known {
		return 0
	}
	return m.value
}

// Spec is the level and note count of one difficulty. A Spec that is not
// Offered means the chart does not have that difficulty at all, which is
// distinct from an offered difficulty with withheld values.
type Spec struct {
	Offered bool
	Level   Metric
	Notes   Metric
}

// Offer returns an offered spec from raw storage values.
func Offer(level, notes int) Spec {
	return Spec{Offered: true, Level: MetricFromRaw(level), Notes: MetricFromRaw(notes)}
}

// SpecSet holds one Spec per difficulty, indexed by Difficulty.
type SpecSet [NumDifficulties]Spec

// Get returns the spec for d. Unknown difficulties are never offered.
func (s SpecSet) Get(d Difficulty) Spec {
	if !d.Valid() {
		return Spec{}
	}
	return s[d]
}

// Set stores spec under d. Unknown difficulties are ignored.
func (s *SpecSet) Set(d Difficulty, spec Spec) {
	if d.Valid() {
		s[d] = spec
	}
}

// Any reports whether any difficulty is offered.
func (s SpecSet) Any() bool {
	for _, sp := range s {
		if sp.Offered {
			return true
		}
	}
	return false
}
