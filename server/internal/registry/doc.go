// Package registry holds the set of connections currently subscribed to the
// quote stream.
//
// Each Subscribe assigns a fresh identity from a running counter starting at 0.
// Identities are never reused and never depend on where an entry sits in the
// collection, so removing one subscriber leaves every other identity intact.
//
// The registry does not own the connections it lists: Unsubscribe and Clear
// only forget an entry, closing the transport is the caller's job.
package registry
