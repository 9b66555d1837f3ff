// package livesync keeps task state current while the user is signed in.
//
// A [Manager] owns the single push connection to the backend, a [Reconciler] applies
// inbound frames to a [Store], and a [Poller] takes over through the REST API when push
// delivery keeps failing. UI surfaces read the [Store] and subscribe to its changes.
package livesync
