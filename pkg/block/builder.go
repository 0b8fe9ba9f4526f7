package block

import "github.com/rodysim/rody/pkg/geom"

// Builder stages the construction of a Block.
//
// The mass density is kept apart from the staged block: the block's Mass is
// only ever a total mass, computed in Get as density times the volume staged
// at that moment.
type Builder struct {
	block              Block
	pendingMassDensity float64
}

// NewBuilder returns a builder in its default state: zero density, zero
// lengths, position at the origin and zero velocity.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetMassDensity sets the mass per unit volume of the block.
func (bb *Builder) SetMassDensity(density float64) *Builder {
	bb.pendingMassDensity = density
	return bb
}

// SetLengths sets the edge lengths along the three axes.
func (bb *Builder) SetLengths(lx, ly, lz float64) *Builder {
	bb.block.Lengths = [3]float64{lx, ly, lz}
	return bb
}

// SetInitialPosition sets the initial center of mass position.
func (bb *Builder) SetInitialPosition(px, py, pz float64) *Builder {
	bb.block.Position = geom.NewPoint(px, py, pz)
	return bb
}

// SetInitialVelocity sets the initial center of mass velocity.
func (bb *Builder) SetInitialVelocity(vx, vy, vz float64) *Builder {
	bb.block.Velocity = geom.NewVector(vx, vy, vz)
	return bb
}

// MassDensity returns the staged mass density.
func (bb *Builder) MassDensity() float64 {
	return bb.pendingMassDensity
}

// Get finalizes the staged block and resets the builder to its default state.
func (bb *Builder) Get() Block {
	built := bb.block
	built.Mass = bb.pendingMassDensity * built.Volume()

	*bb = Builder{}
	return built
}
