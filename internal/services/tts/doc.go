// Package tts talks to an ElevenLabs-compatible speech synthesis API.
//
// Client renders text to audio files and lists the account's voices.
// Catalog turns that list into voice candidates for matching, merging an
// optional YAML overlay that supplies or overrides voice descriptors and a
// per-language default voice used when nothing else covers a language.
package tts
