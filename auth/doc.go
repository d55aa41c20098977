// Package auth implements OAuth 1.0a request signing and the three-legged
// token handshake.
package auth
