package stats

import "fmt"

// TieCounts breaks down the maximum number of distinct undirected ties in a
// core-periphery network of a given size.
type TieCounts struct {
	// Total is the number of distinct node pairs: n(n-1)/2.
	Total int
	// Core is the number of pairs within the core: c(c-1)/2.
	Core int
	// Periphery is the number of remaining pairs, those touching at least
	// one peripheral node.
	Periphery int
}

// PossibleTies returns the tie capacity of a network with nodes total nodes,
// coreNodes of which form the core.
func PossibleTies(nodes, coreNodes int) (TieCounts, error) {
	if nodes < 0 || coreNodes < 0 {
		return TieCounts{}, fmt.Errorf("node counts must be non-negative, got nodes=%d core=%d", nodes, coreNodes)
	}
	if coreNodes > nodes {
		return TieCounts{}, fmt.Errorf("core size %d exceeds network size %d", coreNodes, nodes)
	}
	total := nodes * (nodes - 1) / 2
	core := coreNodes * (coreNodes - 1) / 2
	return TieCounts{Total: total, Core: core, Periphery: total - core}, nil
}

// PeripheralDensity returns the fraction of possible peripheral ties realized
// by pties in a network with the given core and periphery sizes. It returns 0
// when the network is too small to hold any peripheral ties.
func PeripheralDensity(pties, coreNodes, periphNodes int) float64 {
	counts, err := PossibleTies(coreNodes+periphNodes, coreNodes)
	if err != nil || counts.Periphery == 0 {
		return 0
	}
	return float64(pties) / float64(counts.Periphery)
}

// NetworkDensity returns the overall tie density of a core-periphery network
// whose core is fully connected and whose periphery carries pties ties.
func NetworkDensity(pties, coreNodes, periphNodes int) float64 {
	counts, err := PossibleTies(coreNodes+periphNodes, coreNodes)
	if err != nil || counts.Total == 0 {
		return 0
	}
	return float64(pties+counts.Core) / float64(counts.Total)
}
