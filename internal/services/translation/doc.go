// Package translation adapts the LLM client into a word-budgeted translation
// backend.
package translation
