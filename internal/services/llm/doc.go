// Package llm is an OpenAI-compatible chat completion client (OpenRouter by
// default) used as the translation backend.
//
// Requests that fail with HTTP 408, 429 or 5xx, or with network timeouts, are
// marked transient and retried with exponential backoff through
// services.Retry. Context cancellation aborts retries immediately.
package llm
