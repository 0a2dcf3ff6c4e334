// Package core contains the OAuth 1.0a session manager: site and token
// contracts, the per (user, site) authorization state machine and the signed
// request facade. Storage and wire adapters live in sibling packages and
// depend on core, never the other way around.
package core
