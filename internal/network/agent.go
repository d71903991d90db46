// Package network models core-periphery influence networks: the agents that
// may adopt an innovation and the undirected ties along which bandwagon
// pressure travels.
package network

// Segment identifies the stratum an agent belongs to.
type Segment string

const (
	SegmentCore      Segment = "core"      // Densely connected center of the network
	SegmentPeriphery Segment = "periphery" // Sparsely connected outer region
)

// Agent is a potential adopter embedded in the network.
type Agent struct {
	// ID is the agent's index in the network. Core agents come first.
	ID int

	// Segment records which stratum the agent belongs to.
	Segment Segment

	// Assessment is the agent's privately assessed profit from adopting,
	// drawn once per trial. Negative values mean the agent believes
	// adoption is unprofitable on its own merits.
	Assessment float64

	// Sensitivity weighs how strongly bandwagon pressure sways the agent.
	Sensitivity float64

	// Adopted reports whether the agent has adopted the innovation.
	Adopted bool

	// AdoptedCycle is the diffusion cycle at which the agent adopted,
	// or -1 while it has not.
	AdoptedCycle int

	// Influence lists the IDs of the adopters the agent observed at the
	// moment it adopted.
	Influence []int
}

// Adopt marks the agent as an adopter at the given cycle, recording the
// adopters that influenced it. Adoption is one-way: calling Adopt on an
// agent that already adopted does nothing.
func (a *Agent) Adopt(cycle int, influence []int) {
	if a.Adopted {
		return
	}
	a.Adopted = true
	a.AdoptedCycle = cycle
	a.Influence = influence
}

// Score returns the agent's adoption score under the given bandwagon
// pressure. The agent adopts when the score is positive.
func (a *Agent) Score(pressure float64) float64 {
	return a.Assessment + a.Sensitivity*pressure
}
