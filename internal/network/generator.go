package network

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ckirkos/disim/internal/stats"
)

// ErrTooManyTies is returned when the requested number of peripheral ties
// exceeds what the network can hold.
var ErrTooManyTies = errors.New("peripheral ties exceed network capacity")

// Generator builds core-periphery networks: a fully connected core plus a
// configurable number of peripheral ties sampled uniformly at random.
type Generator struct {
	// CoreNodes is the number of agents in the fully connected core.
	CoreNodes int

	// PeripheryNodes is the number of agents outside the core.
	PeripheryNodes int

	// PeripheryTies is the number of ties touching at least one peripheral
	// agent, sampled without replacement from all such pairs.
	PeripheryTies int
}

// Generate builds a network from the generator's parameters using rng for
// tie sampling. The same rng state produces the same network. Peripheral
// agents may end up isolated; that is a valid low-density configuration.
func (g Generator) Generate(rng *rand.Rand) (*Network, error) {
	if g.CoreNodes < 0 || g.PeripheryNodes < 0 || g.PeripheryTies < 0 {
		return nil, fmt.Errorf("generator parameters must be non-negative, got core=%d periphery=%d ties=%d",
			g.CoreNodes, g.PeripheryNodes, g.PeripheryTies)
	}
	counts, err := stats.PossibleTies(g.CoreNodes+g.PeripheryNodes, g.CoreNodes)
	if err != nil {
		return nil, err
	}
	if g.PeripheryTies > counts.Periphery {
		return nil, fmt.Errorf("%d peripheral ties requested but at most %d fit: %w",
			g.PeripheryTies, counts.Periphery, ErrTooManyTies)
	}

	net := New(g.CoreNodes, g.PeripheryNodes)
	for i := 0; i < g.CoreNodes; i++ {
		for j := i + 1; j < g.CoreNodes; j++ {
			if err := net.AddTie(i, j); err != nil {
				return nil, err
			}
		}
	}

	// Candidate pairs touching the periphery: periphery-core first, then
	// periphery-periphery.
	total := g.CoreNodes + g.PeripheryNodes
	pairs := make([][2]int, 0, counts.Periphery)
	for p := g.CoreNodes; p < total; p++ {
		for c := 0; c < g.CoreNodes; c++ {
			pairs = append(pairs, [2]int{p, c})
		}
	}
	for p := g.CoreNodes; p < total; p++ {
		for q := p + 1; q < total; q++ {
			pairs = append(pairs, [2]int{p, q})
		}
	}

	// Partial Fisher-Yates: after i swaps the first i entries are a uniform
	// sample without replacement.
	for i := 0; i < g.PeripheryTies; i++ {
		j := i + rng.Intn(len(pairs)-i)
		pairs[i], pairs[j] = pairs[j], pairs[i]
		if err := net.AddTie(pairs[i][0], pairs[i][1]); err != nil {
			return nil, err
		}
	}
	return net, nil
}
