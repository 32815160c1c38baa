// Package client implements authstate.Backend over the httpapi endpoints, so a
// long-lived Manager (a CLI, a desktop agent) can reconcile against a remote
// server.
//
// Transport failures, gateway errors and unreadable answers wrap
// authstate.ErrNetworkFailure. Rejections are mapped back onto the authstate
// sentinels so callers can use errors.Is as they would in process.
package client
