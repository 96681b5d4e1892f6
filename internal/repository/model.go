package repository

import "github.com/foxseedlab/gymvoice/internal/workout"

type ListFilter struct {
	OwnerID string
	Limit   int
}

// Patch is the single update a completed session may receive after it is appended.
type Patch struct {
	Analysis   *workout.Analysis
	UserWeight *string
	UserHeight *string
}

func (p Patch) Empty() bool {
	return p.Analysis == nil && p.UserWeight == nil && p.UserHeight == nil
}

// Apply merges the patch into s and returns the result.
func (p Patch) Apply(s workout.Session) workout.Session {
	out := s.Clone()
	if p.Analysis != nil {
		a := *p.Analysis
		out.Analysis = &a
	}
	if p.UserWeight != nil {
		out.UserWeight = *p.UserWeight
	}
	if p.UserHeight != nil {
		out.UserHeight = *p.UserHeight
	}
	return out
}
