// Package events implements the analytics event pipeline: a bounded ingress queue, user
// deduplication, counter-based summarization of untracked evaluations, and a small pool of
// workers that deliver flush payloads to the events service.
package events
