// Package filesystem provides low-level, race-free, descriptor-relative
// filesystem primitives used by traversal strategies: directory handle
// management, metadata queries, hardlink and filesystem-format
// classification.
package filesystem
