// Package poller drives the periodic device listing cycle.
//
// A single goroutine polls the cloud every 60 seconds, converts the wire
// records into registry devices, and reconciles them as a full listing.
// The timer is re-armed only after a cycle completes, so polls never
// overlap and a slow cycle pushes the next one back rather than stacking.
//
// # Failure Handling
//
// A failed poll leaves the registry untouched: devices from the last
// successful listing stay available and the cycle retries on the next
// tick. Only after three consecutive failures does the poller report
// itself degraded, which the health endpoint surfaces. A successful cycle
// resets the count.
//
// Shutdown cancels the context; an outstanding poll is abandoned and its
// results discarded.
package poller
