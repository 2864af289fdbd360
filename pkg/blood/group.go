// Package blood holds the ABO/Rh blood group values shared by donors,
// bags, and requests.
package blood

import "fmt"

// Group is one of the eight ABO/Rh blood groups.
type Group string

const (
	OPositive  Group = "O+"
	ONegative  Group = "O-"
	APositive  Group = "A+"
	ANegative  Group = "A-"
	BPositive  Group = "B+"
	BNegative  Group = "B-"
	ABPositive Group = "AB+"
	ABNegative Group = "AB-"
)

var groups = []Group{
	OPositive, ONegative,
	APositive, ANegative,
	BPositive, BNegative,
	ABPositive, ABNegative,
}

// Groups returns all blood groups in report order.
func Groups() []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	return out
}

// Valid reports whether g is one of the eight blood groups.
func (g Group) Valid() bool {
	for _, known := range groups {
		if g == known {
			return true
		}
	}
	return false
}

func (g Group) String() string { return string(g) }

// Parse converts s into a Group, rejecting anything outside the eight
// known values.
func Parse(s string) (Group, error) {
	g := Group(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown blood group %q", s)
	}
	return g, nil
}
