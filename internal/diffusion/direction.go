package diffusion

import (
	"fmt"
	"strings"

	"github.com/ckirkos/disim/internal/network"
)

// Direction selects which stratum seeds a bandwagon.
type Direction string

const (
	// TrickleDown seeds the bandwagon in the core and watches it spread
	// outward into the periphery.
	TrickleDown Direction = "down"
	// TrickleUp seeds the bandwagon in the periphery and watches it climb
	// into the core.
	TrickleUp Direction = "up"
)

// ParseDirection converts a string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "down":
		return TrickleDown, nil
	case "up":
		return TrickleUp, nil
	default:
		return "", fmt.Errorf("invalid direction %q (valid: down, up)", s)
	}
}

// FocalSegment returns the stratum the seed adopter is drawn from.
func (d Direction) FocalSegment() network.Segment {
	if d == TrickleUp {
		return network.SegmentPeriphery
	}
	return network.SegmentCore
}

// TargetSegment returns the stratum the bandwagon must cross into: the one
// whose boundary weaknesses and pressure points matter for this direction.
func (d Direction) TargetSegment() network.Segment {
	if d == TrickleUp {
		return network.SegmentCore
	}
	return network.SegmentPeriphery
}
