// Package tools provides the command-execution boundary.
//
// Ownership boundary:
// - spawning external processes
//
// - capturing or streaming their output
//
// - exit-status normalization
//
// Nothing in this package knows what the commands it runs mean.
package tools
