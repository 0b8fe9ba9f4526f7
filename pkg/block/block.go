package block

import (
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/geom"
)

// Block is the translational state of one rigid rectangular block.
type Block struct {
	// Mass is the total mass of the block.
	Mass float64
	// Lengths are the edge lengths along the three axes.
	Lengths [3]float64
	// Position is the center of mass location.
	Position geom.Point
	// Velocity is the center of mass velocity.
	Velocity geom.Vector
}

// Volume returns the product of the three edge lengths. Degenerate lengths
// give a zero or negative volume.
func (b *Block) Volume() float64 {
	return b.Lengths[0] * b.Lengths[1] * b.Lengths[2]
}

// Channel returns the scalar value of channel c, or 0 for an unknown channel.
func (b *Block) Channel(c Channel) float64 {
	switch c {
	case PX:
		return b.Position.X()
	case PY:
		return b.Position.Y()
	case PZ:
		return b.Position.Z()
	case VX:
		return b.Velocity.X()
	case VY:
		return b.Velocity.Y()
	case VZ:
		return b.Velocity.Z()
	}
	return 0
}

// Format parses selector and returns a formatter bound to b that renders the
// selected channels with decimal fractional digits. The formatter reads b
// when rendered, so it reflects later updates to the block.
func (b *Block) Format(selector string, decimal int) Formatter {
	return Formatter{block: b, selector: ParseSelector(selector), decimal: decimal}
}

// Validate reports degenerate geometry or a negative mass. It is never called
// by the package itself.
func (b *Block) Validate() error {
	if err := errors.ValidateLengths(b.Lengths); err != nil {
		return err
	}
	if b.Mass < 0 {
		return errors.New(errors.ErrCodeInvalidGeometry, "mass must be non-negative, got %g", b.Mass)
	}
	return nil
}
