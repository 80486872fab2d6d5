// Package config loads, normalizes, and validates dubber configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file next to the
// config, and honours environment fallbacks such as ELEVENLABS_API_KEY and
// HF_TOKEN. The Config type centralizes every knob the daemon and CLI need,
// including the speed clamp, word budget, and voice scoring thresholds that
// the pipeline stages read instead of hard-coding.
package config
