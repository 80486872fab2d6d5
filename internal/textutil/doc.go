// Package textutil builds filesystem-safe names for downloaded sources and
// dubbed outputs.
package textutil
