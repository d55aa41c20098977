// Package inbound contains the HTTP surface the host application mounts for
// the authorization callback.
//
// The callback completes a link exactly once per request token. Replays and
// expired tokens are answered with 410 so the user restarts linking.
package inbound
