// Package language validates and normalizes language codes.
//
// Codes are parsed as BCP 47 tags with golang.org/x/text/language. ISO 639-2
// codes and English names ("spanish") are accepted as aliases so CLI users
// and ffprobe stream tags resolve to the same base language.
package language
