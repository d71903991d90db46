package network

import (
	"fmt"
	"sort"
)

// Network is a simple undirected core-periphery influence network. Agents
// are indexed 0..Len()-1 with the core occupying the first CoreSize() IDs.
type Network struct {
	agents []Agent
	adj    []map[int]bool
	core   int
	ties   int
}

// New creates a network with the given segment sizes and no ties. Every
// agent starts non-adopted with a zero assessment.
func New(coreNodes, periphNodes int) *Network {
	n := coreNodes + periphNodes
	net := &Network{
		agents: make([]Agent, n),
		adj:    make([]map[int]bool, n),
		core:   coreNodes,
	}
	for i := range net.agents {
		seg := SegmentCore
		if i >= coreNodes {
			seg = SegmentPeriphery
		}
		net.agents[i] = Agent{ID: i, Segment: seg, AdoptedCycle: -1}
		net.adj[i] = make(map[int]bool)
	}
	return net
}

// Len returns the total number of agents.
func (n *Network) Len() int { return len(n.agents) }

// CoreSize returns the number of core agents.
func (n *Network) CoreSize() int { return n.core }

// PeripherySize returns the number of peripheral agents.
func (n *Network) PeripherySize() int { return len(n.agents) - n.core }

// Ties returns the number of distinct ties in the network.
func (n *Network) Ties() int { return n.ties }

// Agent returns a pointer to the agent with the given ID. It panics when id
// is out of range, matching slice indexing semantics.
func (n *Network) Agent(id int) *Agent { return &n.agents[id] }

// AddTie connects two agents with an undirected tie. Adding an existing tie
// is a no-op. Self-ties and out-of-range IDs are rejected.
func (n *Network) AddTie(a, b int) error {
	if a == b {
		return fmt.Errorf("self tie on agent %d", a)
	}
	if a < 0 || a >= len(n.agents) || b < 0 || b >= len(n.agents) {
		return fmt.Errorf("tie %d-%d out of range for %d agents", a, b, len(n.agents))
	}
	if n.adj[a][b] {
		return nil
	}
	n.adj[a][b] = true
	n.adj[b][a] = true
	n.ties++
	return nil
}

// HasTie reports whether agents a and b are directly connected.
func (n *Network) HasTie(a, b int) bool {
	if a < 0 || a >= len(n.agents) || b < 0 || b >= len(n.agents) {
		return false
	}
	return n.adj[a][b]
}

// Neighbors returns the IDs of the agents tied to id, in ascending order.
func (n *Network) Neighbors(id int) []int {
	out := make([]int, 0, len(n.adj[id]))
	for nb := range n.adj[id] {
		out = append(out, nb)
	}
	sort.Ints(out)
	return out
}

// AdoptedNeighbors returns the IDs of id's neighbors that have adopted, in
// ascending order.
func (n *Network) AdoptedNeighbors(id int) []int {
	var out []int
	for nb := range n.adj[id] {
		if n.agents[nb].Adopted {
			out = append(out, nb)
		}
	}
	sort.Ints(out)
	return out
}

// Members returns the IDs of all agents in the given segment, in ascending
// order.
func (n *Network) Members(seg Segment) []int {
	var out []int
	for i := range n.agents {
		if n.agents[i].Segment == seg {
			out = append(out, i)
		}
	}
	return out
}

// SegmentSize returns the number of agents in the given segment.
func (n *Network) SegmentSize(seg Segment) int {
	if seg == SegmentCore {
		return n.core
	}
	return len(n.agents) - n.core
}

// Adopters returns the total number of adopters.
func (n *Network) Adopters() int {
	count := 0
	for i := range n.agents {
		if n.agents[i].Adopted {
			count++
		}
	}
	return count
}

// SegmentAdopters returns the number of adopters in the given segment.
func (n *Network) SegmentAdopters(seg Segment) int {
	count := 0
	for i := range n.agents {
		if n.agents[i].Segment == seg && n.agents[i].Adopted {
			count++
		}
	}
	return count
}
