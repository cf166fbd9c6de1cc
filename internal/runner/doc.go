// Package runner owns execution concerns.
//
// Ownership boundary:
// - run-plan construction across the package/feature/toolchain/target axes
//
// - sequential plan execution with progress accounting
//
// - partition sharding and keep-going failure aggregation
//
// The runner composes commands; it never interprets their output beyond the
// exit status.
package runner
