// Package pantry holds module-level metadata.
package pantry

const Version = "0.1.0"
