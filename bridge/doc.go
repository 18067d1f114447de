// Package bridge connects a simulated Hubo model to the hubo-ach channels.
//
// # Reading Guide
//
// Start with these files to understand the per-step data path:
//   - catalog.go: the fixed table of physical joint slots and sensor defaults
//   - resolver.go: name matching that pairs physical joint IDs with model DOFs
//   - session.go: the reference/state channel pair and its open/close lifecycle
//   - emulator.go: the Unloaded → Initializing → Running state machine that
//     drives read → torques → (host integrates) → publish every step
//
// # Architecture
//
// The bridge package defines interfaces and the joint-identity core; concrete
// collaborators live in sub-packages:
//   - bridge/ach/: shared-memory channels (mmap'd files, seqlocked frames)
//   - bridge/memchan/: in-process channels for dry runs and tests
//   - bridge/pid/: PID feedback controller over the model DOFs
//   - bridge/rigid/: minimal model host with named DOFs and bodies
//   - bridge/telemetry/: websocket mirror of the published state
//
// bridge/pid registers its constructor via init() by setting
// NewControllerFunc, the same way an implementation package plugs into an
// interface owner without an import cycle.
//
// # Key Interfaces
//   - World / Skeleton: what the model host must expose
//   - Transport / Channel: open a named channel, read latest, publish
//   - Controller: mutable targets in, torques out
package bridge
