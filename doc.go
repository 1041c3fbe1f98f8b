// Package gridfield implements distributed typed fields over Cartesian
// lattices.
//
// A field couples a partitioned grid with a typed per-site object (complex
// scalars, vectors, matrices, or spin-color composites) and stores each
// sub-object in a cache-aligned slab on a pluggable storage engine. Reads
// and writes compile into copy plans: deterministic schedules of local
// copies and point-to-point messages that every rank derives independently,
// so no rank ever has to exchange a schedule before moving data.
//
// # Architecture Overview
//
// The module consists of several key components:
//
//   - grid: Cartesian lattice geometry, site partitioning, checkerboards
//   - otype: per-site object types and their sub-object decomposition
//   - storage: engine contract, host engine, and the complex codec
//   - view: flat access-point descriptions of memory and lattice data
//   - plan: view-to-view copy-plan compilation and execution
//   - comms: point-to-point communicator contract and in-process mesh
//   - field: lattice containers, keyed read/write, in-place operators
//   - expr: linear-combination expression evaluator
//   - book: live-container bookkeeping registry
//   - cmd: command-line tools (latinfo)
//
// # Execution Model
//
// The module is single-program-multiple-data: every rank runs the same
// program against its shard of the lattice. Globally keyed operations
// enumerate identical access-point sequences on all ranks, with buffers
// attached only where the data is local; compiling the pair of sequences
// yields matching send and receive schedules everywhere.
//
// # Basic Usage
//
//	g, err := grid.New([]int{8, 8, 8, 16}, grid.Double)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	l, err := field.New(g, otype.VColor(), storage.NewHost())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
//	if err := l.Write(field.All{}, 0); err != nil {
//	    log.Fatal(err)
//	}
//
// For more information, see the project repository at
// https://github.com/sbl8/gridfield
package gridfield
