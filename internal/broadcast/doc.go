// Package broadcast holds the set of live-reload clients and fans reload
// messages out to them.
//
// The registry is a mutex-guarded map keyed by client ID. Every client owns a
// bounded send queue drained by its own writer goroutine, so a slow browser
// never stalls a broadcast: when its queue is full, or a write fails, the
// client is marked closed and pruned. Broadcasts go to the clients registered
// at the moment of the call and are never replayed to later registrations.
package broadcast
