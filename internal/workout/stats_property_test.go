package workout

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestPropertyVolume_PoundsWithKgConversion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sets := rapid.IntRange(1, 20).Draw(rt, "sets")
		reps := rapid.IntRange(1, 50).Draw(rt, "reps")
		weight := float64(rapid.IntRange(0, 1000).Draw(rt, "weight"))
		unit := rapid.SampledFrom([]WeightUnit{UnitLbs, UnitKg, ""}).Draw(rt, "unit")

		ex := Exercise{Name: "Lift", Sets: &sets, Reps: &reps, Weight: &weight, WeightUnit: unit}
		want := float64(sets) * float64(reps) * weight
		if unit == UnitKg {
			want *= LbsPerKg
		}
		if math.Abs(ex.Volume()-want) > 1e-9 {
			rt.Fatalf("Volume() = %v, want %v", ex.Volume(), want)
		}
		if got := TotalVolume([]Exercise{ex}); got != int(math.Round(want)) {
			rt.Fatalf("TotalVolume = %d, want %d", got, int(math.Round(want)))
		}
	})
}

func TestPropertyCardioCount_NeverExceedsExerciseCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		exercises := make([]Exercise, 0, n)
		want := 0
		for i := 0; i < n; i++ {
			hasDuration := rapid.Bool().Draw(rt, "duration")
			hasDistance := rapid.Bool().Draw(rt, "distance")
			ex := Exercise{Name: "Move"}
			if hasDuration {
				ex.Duration = "10m"
			}
			if hasDistance {
				ex.Distance = "1km"
			}
			if hasDuration || hasDistance {
				want++
			}
			exercises = append(exercises, ex)
		}
		got := CardioCount(exercises)
		if got != want {
			rt.Fatalf("CardioCount = %d, want %d", got, want)
		}
		if got > len(exercises) {
			rt.Fatalf("CardioCount %d exceeds exercise count %d", got, len(exercises))
		}
	})
}
