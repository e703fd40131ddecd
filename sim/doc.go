// Package sim provides the adaptive multiphase breakup simulation kernel.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - mesh.go: the arena-backed quadtree/octree, refine/coarsen, Morton
//     traversal, and neighbor queries across resolution jumps
//   - vof.go: conservative tracer advection, filtering, and curvature
//     reconstruction
//   - simulator.go: the tick loop, event firing, and the coupled
//     advect/force/project step
//
// # Architecture
//
// One Simulator drives a tick loop over simulation time. Each tick it
// fires the registered events that are due (initialization, sources,
// adaptivity, load balancing, output), then advances the coupled
// tracer/velocity state by dt. Mesh topology is owned by Mesh; field
// arrays by FieldStore, keyed by cell id. GlobalParams is resolved once
// at startup and shared read-only.
//
// # Key Interfaces
//
// The extension points are small interfaces and registries:
//   - EventAction: the tagged action variants fired by due events
//   - PressureSolver: the opaque pressure-projection primitive
//   - Balancer: partition imbalance measurement and redistribution
//   - ScalarExpr / VectorExpr: typed expression objects registered by
//     name and bound to scenario snippets at load time
//
// Decision tracing lives in the sim/trace sub-package.
package sim
