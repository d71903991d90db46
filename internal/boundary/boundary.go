// Package boundary detects structural weaknesses and pressure points along
// the core-periphery boundary of an influence network.
//
// A weakness is an agent in the target segment that would adopt as soon as a
// single cross-segment neighbor has: the bandwagon can slip across the
// boundary through it. A pressure point is an agent whose cross-segment
// neighborhood covers a large share of the other segment, concentrating
// whatever pressure that segment generates.
package boundary

import "github.com/ckirkos/disim/internal/network"

// DefaultProportion is the fraction of the other segment an agent must
// neighbor before it counts as a pressure point.
const DefaultProportion = 0.5

// Report lists the agents matching each boundary condition, in ascending ID
// order.
type Report struct {
	Weaknesses     []int
	PressurePoints []int
}

// Find scans the target segment of net for boundary weaknesses and pressure
// points. The weakness test assumes exactly one adopted cross-segment
// neighbor, so the pressure term is 1/N with N the total number of agents.
func Find(net *network.Network, target network.Segment, proportion float64) Report {
	var report Report
	total := net.Len()
	if total == 0 {
		return report
	}

	targetIDs := net.Members(target)
	otherCount := total - len(targetIDs)
	threshold := proportion * float64(otherCount)

	for _, id := range targetIDs {
		cross := 0
		for _, nb := range net.Neighbors(id) {
			if net.Agent(nb).Segment != target {
				cross++
			}
		}

		if cross > 0 && net.Agent(id).Score(1.0/float64(total)) > 0 {
			report.Weaknesses = append(report.Weaknesses, id)
		}
		if float64(cross) >= threshold {
			report.PressurePoints = append(report.PressurePoints, id)
		}
	}
	return report
}
