// Package ratelimit paces calls to the platform.
//
// TokenBucket wraps golang.org/x/time/rate for per-request pacing inside the
// HTTP provider. Delay is the fixed pause the fetch loop takes after each
// candidate; both honour context cancellation so an interrupt ends the wait.
package ratelimit
