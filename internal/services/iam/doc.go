// Package iam resolves authenticated identities to principal records and
// computes the access summary downstream authorization consumes.
//
// The request flow is:
//
//	Extract → Tenant Directory / PSK Validator → Resolver → scope active → handler
//
// The Resolver runs with the tenant's partition already activated and
// get-or-creates the principal row for the identity: human users are keyed
// by username, service callers by client ID with the System flag set. The
// AccessBuilder is a pure read over the principal's group-inherited policy
// and role assignments; it is invoked lazily by handlers, never by the
// middleware itself.
package iam
