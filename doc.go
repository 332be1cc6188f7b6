// Package rauth is an embeddable authentication core. It wires signed
// token issuance, multi factor verification, secret lifecycle, and
// session tracking into facade flows (signup, login, logout, email
// verification, password reset, TOTP enrollment) behind a single
// [Engine].
//
// The engine owns no storage of its own. Callers supply a cache, a
// [UserProvider] over their user database, a [mfa.Mailer] for outbound
// codes, and optionally durable repositories for secrets and sessions.
// Transport, persistence schemas, and email rendering stay outside.
package rauth
