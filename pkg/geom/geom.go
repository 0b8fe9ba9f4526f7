// Package geom provides the small point and vector algebra used by the block
// model: construction from three scalars, component access, norms and an
// in-place scaled add.
//
// Points and vectors are distinct types over the same mgl64.Vec3 storage so
// that a position cannot be passed where a velocity is expected. Both are
// value types; their zero values are the origin and the null vector.
package geom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector is a free 3D vector (velocity, displacement).
type Vector struct {
	Coords mgl64.Vec3
}

// Point is a location in 3D space.
type Point struct {
	Coords mgl64.Vec3
}

// NewVector returns the vector (x, y, z).
func NewVector(x, y, z float64) Vector {
	return Vector{Coords: mgl64.Vec3{x, y, z}}
}

// NewPoint returns the point (x, y, z).
func NewPoint(x, y, z float64) Point {
	return Point{Coords: mgl64.Vec3{x, y, z}}
}

func (v Vector) X() float64 { return v.Coords.X() }
func (v Vector) Y() float64 { return v.Coords.Y() }
func (v Vector) Z() float64 { return v.Coords.Z() }

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return v.Coords.Len()
}

// Scale returns s * v.
func (v Vector) Scale(s float64) Vector {
	return Vector{Coords: v.Coords.Mul(s)}
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{Coords: v.Coords.Add(o.Coords)}
}

// AddIn performs v += scale * other in place.
func (v *Vector) AddIn(scale float64, other Vector) {
	v.Coords = v.Coords.Add(other.Coords.Mul(scale))
}

// String formats v as "(x, y, z)".
func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X(), v.Y(), v.Z())
}

func (p Point) X() float64 { return p.Coords.X() }
func (p Point) Y() float64 { return p.Coords.Y() }
func (p Point) Z() float64 { return p.Coords.Z() }

// Norm returns the distance from the origin to p.
func (p Point) Norm() float64 {
	return p.Coords.Len()
}

// AddIn performs p += scale * v in place.
func (p *Point) AddIn(scale float64, v Vector) {
	p.Coords = p.Coords.Add(v.Coords.Mul(scale))
}

// Sub returns the displacement p - q.
func (p Point) Sub(q Point) Vector {
	return Vector{Coords: p.Coords.Sub(q.Coords)}
}

// Distance returns |p - q|.
func (p Point) Distance(q Point) float64 {
	return p.Sub(q).Norm()
}

// String formats p as "(x, y, z)".
func (p Point) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X(), p.Y(), p.Z())
}
