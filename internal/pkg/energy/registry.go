package energy

import (
	"math"
	"time"
)

// Registry owns the live energy sources of one level.
//
// Every mutator clamps into [Min, Max] and silently ignores unknown ids; the
// boolean returns report whether the call took effect.
type Registry struct {
	templates map[ID]Template
	sources   map[ID]*Source
	order     []ID
}

// New returns a Registry holding an owned copy of each template.
func New(templates []Template) *Registry {
	r := &Registry{
		templates: make(map[ID]Template, len(templates)),
		sources:   make(map[ID]*Source, len(templates)),
		order:     make([]ID, 0, len(templates)),
	}
	for _, t := range templates {
		if _, dup := r.templates[t.ID]; dup {
			continue
		}
		r.templates[t.ID] = t
		r.sources[t.ID] = newSource(t)
		r.order = append(r.order, t.ID)
	}
	return r
}

// Reset restores every source to its template.
func (r *Registry) Reset() {
	for id, t := range r.templates {
		r.sources[id] = newSource(t)
	}
}

// Update advances the registry by one tick. Sources have no autonomous
// dynamics; weather and events drive the uncontrolled ones.
func (r *Registry) Update(elapsed time.Duration) {}

// ApplyControlDelta moves a controllable source by its ChangeRate over elapsed,
// in the direction of signedDelta. Only the sign of signedDelta matters.
func (r *Registry) ApplyControlDelta(id ID, signedDelta float64, elapsed time.Duration) bool {
	s, ok := r.sources[id]
	if !ok || !s.Controlled {
		return false
	}
	change := s.ChangeRate * elapsed.Seconds() * sign(signedDelta)
	s.Current = clamp(s.Current+change, s.Min, s.Max)
	return true
}

// SetAbsolute clamps and assigns value.
func (r *Registry) SetAbsolute(id ID, value float64) bool {
	s, ok := r.sources[id]
	if !ok {
		return false
	}
	s.Current = clamp(value, s.Min, s.Max)
	return true
}

// ApplyPercentDelta changes Current by percent of its present value, so
// successive deltas compound.
func (r *Registry) ApplyPercentDelta(id ID, percent float64) bool {
	s, ok := r.sources[id]
	if !ok {
		return false
	}
	s.Current = clamp(s.Current+s.Current*percent/100, s.Min, s.Max)
	return true
}

// ApplyLevelLimits rescales Max of each named source to templateMax * factor.
func (r *Registry) ApplyLevelLimits(limits map[ID]float64) {
	for id, factor := range limits {
		r.ScaleMax(id, factor)
	}
}

// ScaleMax sets Max to the template Max times factor and pulls Current down if
// it now exceeds Max. Repeated calls do not compound.
func (r *Registry) ScaleMax(id ID, factor float64) bool {
	s, ok := r.sources[id]
	if !ok {
		return false
	}
	s.Max = math.Max(r.templates[id].Max*factor, s.Min)
	if s.Current > s.Max {
		s.Current = s.Max
	}
	return true
}

// TotalSupply sums Current over supply side sources.
func (r *Registry) TotalSupply() float64 {
	total := 0.0
	for _, id := range r.order {
		if s := r.sources[id]; !s.DemandSide {
			total += s.Current
		}
	}
	return total
}

// DemandReduction is the Current of the demand response source.
func (r *Registry) DemandReduction() float64 {
	reduction := 0.0
	for _, id := range r.order {
		if s := r.sources[id]; s.DemandSide {
			reduction += s.Current
		}
	}
	return reduction
}

// Source returns a copy of the source state.
func (r *Registry) Source(id ID) (Source, bool) {
	s, ok := r.sources[id]
	if !ok {
		return Source{}, false
	}
	return *s, true
}

// Current is a getter for a source's output; unknown ids read as 0.
func (r *Registry) Current(id ID) float64 {
	if s, ok := r.sources[id]; ok {
		return s.Current
	}
	return 0
}

// Percent returns Current/Max as a percentage.
func (r *Registry) Percent(id ID) float64 {
	if s, ok := r.sources[id]; ok {
		return s.Percent()
	}
	return 0
}

// Controllable reports whether the player may steer the source.
func (r *Registry) Controllable(id ID) bool {
	s, ok := r.sources[id]
	return ok && s.Controlled
}

// Baseline is the template nominal output, frozen for the level.
func (r *Registry) Baseline(id ID) float64 {
	return r.templates[id].Current
}

// Sources returns copies of every source in registration order.
func (r *Registry) Sources() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sources[id])
	}
	return out
}

// SupplySources returns copies of the supply side sources only.
func (r *Registry) SupplySources() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		if s := r.sources[id]; !s.DemandSide {
			out = append(out, *s)
		}
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
