// Package secret resolves credentials referenced from client configuration.
//
// A value may contain ${VAR} references, expanded strictly from the
// environment, and secretref:<provider>:<ref> references resolved by a
// registered Provider:
//
//	secretref:env:LANCEDB_API_KEY
//	Bearer secretref:file:/run/secrets/lancedb
//
// Resolved values must never be logged.
package secret
