package model

import "math"

// Schedule is an exponentially decaying learning rate driven by the number of
// examples seen so far.
type Schedule struct {
	Base      float64
	DecayRate float64
	// DecayEvery is the number of examples per decay period, typically the
	// training pool size so the rate drops once per epoch.
	DecayEvery int
	Staircase  bool
}

// Rate returns the learning rate after seen examples.
func (s Schedule) Rate(seen int) float64 {
	if s.DecayEvery <= 0 || s.DecayRate <= 0 {
		return s.Base
	}
	p := float64(seen) / float64(s.DecayEvery)
	if s.Staircase {
		p = math.Floor(p)
	}
	return s.Base * math.Pow(s.DecayRate, p)
}
