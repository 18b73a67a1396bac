package planner

// EmissionFactors are kg CO2 per km by mode.
var EmissionFactors = map[Mode]float64{
	ModeFoot:    0,
	ModeBike:    0,
	ModeTransit: 0.05,
	ModeCar:     0.12,
}

// Emissions sums distance times the mode factor over legs.
func Emissions(legs []Leg) float64 {
	var total float64
	for _, l := range legs {
		total += l.DistanceKm * EmissionFactors[l.Mode]
	}
	return total
}

// Score maps an itinerary's metrics to a comparable value; higher is
// better. The +1 and +0.1 offsets keep free or zero-emission trips finite.
func Score(durationMinutes float64, cost int64, co2Kg float64, priority Priority) float64 {
	c := float64(cost)
	switch priority {
	case PriorityTime:
		return 1000 / (durationMinutes + 1)
	case PriorityCost:
		return 1000 / (c + 1)
	case PrioritySustainability:
		return 100 / (co2Kg + 0.1)
	default:
		return 500/(durationMinutes+1) + 300/(c+1) + 200/(co2Kg+0.1)
	}
}
