package planner

import (
	"fmt"
)

// Advisory alert texts.
const (
	AlertRain        = "High chance of rain: consider covered transport"
	AlertPeakTraffic = "Peak hour: heavy traffic expected"
	servicePrefix    = "Service alert: "
	weatherNoticeFmt = "Weather unavailable: %s"
)

// assemble selects the recommended itinerary and alternatives from the
// ranked candidates and attaches context.
func (p *Planner) assemble(pc *planContext, ranked []Itinerary, baseline *Itinerary) *Result {
	result := &Result{
		Alternatives:      []Itinerary{},
		Alerts:            p.advisories(pc),
		TrafficMultiplier: pc.multiplier,
		DrivingBaseline:   baseline,
		DepartureTime:     pc.departure,
		Timestamp:         p.now().In(p.loc),
		Weather:           summarizeWeather(pc),
	}

	if len(ranked) > 0 {
		top := ranked[0]
		result.Recommended = &top
		end := min(len(ranked), 1+maxAlternatives)
		result.Alternatives = append(result.Alternatives, ranked[1:end]...)
	}
	return result
}

func summarizeWeather(pc *planContext) WeatherSummary {
	if pc.report != nil {
		return WeatherSummary{Available: true, Report: pc.report}
	}
	summary := WeatherSummary{Available: false}
	if pc.weatherErr != nil {
		summary.Error = pc.weatherErr.Error()
	}
	return summary
}

func (p *Planner) advisories(pc *planContext) []string {
	alerts := []string{}
	if pc.precipitation() > rainAlertThreshold {
		alerts = append(alerts, AlertRain)
	}
	if pc.multiplier > trafficAlertMultiple {
		alerts = append(alerts, AlertPeakTraffic)
	}

	n := 0
	for _, a := range pc.alerts {
		if n >= p.maxAlerts {
			break
		}
		if a.Header == "" {
			continue
		}
		alerts = append(alerts, servicePrefix+a.Header)
		n++
	}

	if pc.report == nil && pc.weatherErr != nil {
		alerts = append(alerts, fmt.Sprintf(weatherNoticeFmt, pc.weatherErr))
	}
	return alerts
}
