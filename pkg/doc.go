// Package pkg provides the core libraries of rody, a rigid-block kinematic
// simulator.
//
// # Overview
//
// Rody moves a rectangular block of uniform density along a regular timeline
// with explicit Euler steps and prints its position and velocity as
// fixed-decimal text. The pkg directory is organized into three areas:
//
//  1. Model - [block], [timeline], [sim] and [geom]
//  2. Orchestration - [scenario], [sink] and [pipeline]
//  3. Infrastructure - [cache], [store], [api], [observability] and [errors]
//
// # Architecture
//
// The data flow of a run:
//
//	TOML scenario / JSON request
//	         ↓
//	    [scenario] (defaults, validation, warnings)
//	         ↓
//	    [block] + [timeline] (initial state, sample grid)
//	         ↓
//	    [sim] (Forward per sample, observers)
//	         ↓
//	    [sink] (text, NDJSON or CSV)
//
// [pipeline] ties these together with a [cache] in front, and [api] exposes
// the pipeline over HTTP with run records kept in a [store].
//
// # Quick Start
//
//	b := block.NewBuilder().
//	    SetMassDensity(1).
//	    SetLengths(1, 1, 1).
//	    SetInitialVelocity(-1, 0, 0).
//	    Get()
//	tl := timeline.MustNew(0, 0.1, 1)
//	for range tl.All() {
//	    sim.Forward(&b, tl.Step())
//	}
//	fmt.Println(b.Format("_", 3))
//	// Output:  -0.100  0.000  0.000  -1.000  0.000  0.000
package pkg
