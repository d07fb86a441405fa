// Package discovery locates a bridge on the network.
//
// Two independent strategies exist; the lifecycle invokes them
// sequentially, registry first:
//
// # Registry discovery
//
// A single HTTPS GET to the public registry endpoint. The registry
// returns a JSON array of {internalipaddress, id} entries for bridges
// that have phoned home from the caller's public IP. Only the first
// entry is used: multi-bridge networks are not supported.
//
// # Local discovery
//
// An mDNS/DNS-SD browse for the _hue._tcp service type. The first
// responder that advertises an IPv4 address and a bridgeid TXT record
// wins. The browse is bounded by a 10 second timeout and the listener is
// cancelled unconditionally once it resolves, errors or times out.
//
// Both operations are one-shot: they resolve or fail exactly once and
// hold no state afterwards.
package discovery
