// Package block models a single rigid rectangular block moving in 3D.
//
// A [Block] carries a total mass, three edge lengths and the position and
// velocity of its center of mass. Blocks are built through a [Builder],
// which takes a mass density rather than a mass: the total mass is derived
// from the density and the staged edge lengths when [Builder.Get] finalizes
// the block.
//
// # Building
//
//	b := block.NewBuilder().
//	    SetMassDensity(1.0).
//	    SetLengths(1, 1, 1).
//	    SetInitialVelocity(-1, 0, 0).
//	    Get()
//
// Setters may be called in any order; only the state staged at the time of
// Get matters. Get resets the builder, so the same Builder can produce a
// second, independent block.
//
// # Formatting
//
// A block exposes six scalar channels: px, py, pz (position) and vx, vy, vz
// (velocity). [Block.Format] selects channels with a whitespace separated
// selector and renders them as fixed-decimal text:
//
//	fmt.Println(b.Format("p vx", 3))
//
// Selector tokens are case-insensitive. "_" selects all six channels, "p"
// and "v" select the three position or velocity channels, and the channel
// names select one channel each. Unknown tokens are dropped silently; use
// [ParseSelectorStrict] to have them reported.
//
// Degenerate geometry (zero or negative lengths) is accepted everywhere and
// simply yields a non-positive volume and mass. [Block.Validate] reports it
// for callers that want to reject such blocks.
package block
