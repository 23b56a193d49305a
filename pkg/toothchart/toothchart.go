// Package toothchart maps the 32 permanent-tooth positions to display
// identifiers and derives per-tooth visual state from dental-record history.
//
// Two numbering schemes are in use: sequential (1-32, upper arch left to
// right then lower arch) and FDI two-digit (quadrant + position). They label
// the same 32 anatomical positions but their identifiers are not
// interchangeable: a record stores the number of whichever scheme the chart
// rendered when it was captured.
package toothchart

import "fmt"

// Scheme selects the display numbering for the 32 tooth positions.
type Scheme string

const (
	SchemeSequential Scheme = "sequential"
	SchemeFDI        Scheme = "fdi"
)

// ParseScheme resolves a scheme query parameter. Empty selects sequential.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case "", SchemeSequential:
		return SchemeSequential, nil
	case SchemeFDI:
		return SchemeFDI, nil
	default:
		return "", fmt.Errorf("unknown tooth numbering scheme %q", s)
	}
}

// Arch is the jaw a tooth belongs to.
type Arch string

const (
	ArchUpper Arch = "upper"
	ArchLower Arch = "lower"
)

// Type is the anatomical classification of a tooth position.
type Type string

const (
	TypeMolar    Type = "molar"
	TypePremolar Type = "premolar"
	TypeCanine   Type = "canine"
	TypeIncisor  Type = "incisor"
)

// State is the rendered condition of a tooth on the chart.
type State string

const (
	StateHealthy  State = "healthy"
	StateTreated  State = "treated"
	StateSelected State = "selected"
)

// Tooth is one of the 32 chart positions under a given scheme.
type Tooth struct {
	Number   string `json:"number"`
	Position int    `json:"position"`
	Arch     Arch   `json:"arch"`
	Type     Type   `json:"type"`
}

// fdiNumbers lists the FDI labels position-aligned with sequential 1-32:
// upper arch right to left (18..11, 21..28), then lower (48..41, 31..38).
var fdiNumbers = []string{
	"18", "17", "16", "15", "14", "13", "12", "11",
	"21", "22", "23", "24", "25", "26", "27", "28",
	"48", "47", "46", "45", "44", "43", "42", "41",
	"31", "32", "33", "34", "35", "36", "37", "38",
}

// typeAt classifies a half-arch position by distance from the midline.
// within is 1..8 counting from the outermost tooth of the quadrant.
func typeAt(within int) Type {
	switch {
	case within <= 3:
		return TypeMolar
	case within <= 5:
		return TypePremolar
	case within == 6:
		return TypeCanine
	default:
		return TypeIncisor
	}
}

// Layout returns the 32 tooth positions labeled under the given scheme,
// ordered by position (1-16 upper arch, 17-32 lower arch).
func Layout(scheme Scheme) []Tooth {
	teeth := make([]Tooth, 32)
	for i := 0; i < 32; i++ {
		position := i + 1
		arch := ArchUpper
		if position > 16 {
			arch = ArchLower
		}

		// Position within the arch, then folded into a quadrant of 8
		// counted outside-in.
		inArch := (i % 16) + 1
		within := inArch
		if within > 8 {
			within = 17 - within
		}

		number := fmt.Sprintf("%d", position)
		if scheme == SchemeFDI {
			number = fdiNumbers[i]
		}

		teeth[i] = Tooth{
			Number:   number,
			Position: position,
			Arch:     arch,
			Type:     typeAt(within),
		}
	}
	return teeth
}

// ToothState is a chart position with its derived visual state.
type ToothState struct {
	Tooth
	State       State `json:"state"`
	RecordCount int   `json:"recordCount"`
}

// Derive computes the rendered state of every tooth position. treatedCounts
// maps a tooth number (in the active scheme) to how many dental records
// reference it; any count above zero renders as treated. A non-empty selected
// number overrides the treated/healthy state for that tooth only.
func Derive(scheme Scheme, treatedCounts map[string]int, selected string) []ToothState {
	layout := Layout(scheme)
	states := make([]ToothState, len(layout))
	for i, tooth := range layout {
		state := StateHealthy
		if treatedCounts[tooth.Number] > 0 {
			state = StateTreated
		}
		if selected != "" && tooth.Number == selected {
			state = StateSelected
		}
		states[i] = ToothState{
			Tooth:       tooth,
			State:       state,
			RecordCount: treatedCounts[tooth.Number],
		}
	}
	return states
}

// Toggle applies selection semantics: clicking the selected tooth deselects
// it, clicking any other tooth moves the selection there. The empty string
// means no selection.
func Toggle(current, clicked string) string {
	if clicked == current {
		return ""
	}
	return clicked
}
