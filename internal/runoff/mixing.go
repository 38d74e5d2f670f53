package runoff

import "github.com/chrissnell/isohydro/internal/types"

// Component is a water mass with its isotopic composition.
type Component struct {
	Mass float64
	Iso  types.Composition
}

// Mix returns the mass-weighted composition of the components. Components without mass
// take no part in the mixture. The result is undefined when no component carries mass or
// when a component with mass has an undefined composition. A single massive component
// is returned unchanged so that a pure source keeps its exact signature.
func Mix(parts ...Component) types.Composition {
	var (
		massive []Component
		total   float64
	)
	for _, p := range parts {
		if !(p.Mass > 0) {
			continue
		}
		if !p.Iso.Defined {
			return types.Undefined
		}
		massive = append(massive, p)
		total += p.Mass
	}

	switch len(massive) {
	case 0:
		return types.Undefined
	case 1:
		return massive[0].Iso
	}

	var h, o float64
	for _, p := range massive {
		h += p.Mass * p.Iso.D2H
		o += p.Mass * p.Iso.D18O
	}
	return types.NewComposition(h/total, o/total)
}
