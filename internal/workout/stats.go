package workout

import "math"

const LbsPerKg = 2.20462

// Volume returns sets*reps*weight in pounds, or zero when any of the three is absent.
func (e Exercise) Volume() float64 {
	if e.Sets == nil || e.Reps == nil || e.Weight == nil {
		return 0
	}
	v := float64(*e.Sets) * float64(*e.Reps) * *e.Weight
	if e.WeightUnit == UnitKg {
		v *= LbsPerKg
	}
	return v
}

func TotalVolume(exercises []Exercise) int {
	var total float64
	for _, e := range exercises {
		total += e.Volume()
	}
	return int(math.Round(total))
}

// CardioCount counts exercises with a duration or a distance, once each.
func CardioCount(exercises []Exercise) int {
	n := 0
	for _, e := range exercises {
		if e.IsCardio() {
			n++
		}
	}
	return n
}
