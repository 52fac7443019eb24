// Package component assigns process-stable identifiers and memory layouts to
// record types.
//
// A record type is any Go type whose values contain no pointers (no strings,
// slices, maps, channels, functions, interfaces or pointers, directly or in
// nested fields). Such values can live in arena memory that the garbage
// collector never scans.
//
//	desc, err := component.Register[Position](nil)
//	// desc.ID is stable for the life of the process
package component
