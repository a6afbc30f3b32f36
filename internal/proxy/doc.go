// Package proxy exposes the offline cache agent over HTTP. Pages talk to this
// listener instead of the origin: every ordinary request becomes a fetch event
// answered from the agent's cache or the network, and the /-/ control routes
// deliver push, notification-click and sync events the way a host runtime
// would.
package proxy
