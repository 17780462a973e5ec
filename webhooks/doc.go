// Package webhooks delivers outbound event notifications to registered
// endpoints.
//
// Deliveries are signed with the endpoint secret and retried with capped
// exponential backoff. Sync paths treat delivery as best effort: a dead
// endpoint never fails the sync that produced the event.
package webhooks
