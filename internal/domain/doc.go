// Package domain contains the core entities and error values for pikarelay.
//
// This package is the innermost layer. It has no dependencies on the network,
// logging or configuration and holds only the rules every other layer agrees on.
//
// # Entities
//
//   - [Command]: one relayed unit of work, a serialized request plus the key it came from
//   - [ReplyError]: an error reply returned by the destination store
//
// # Errors
//
// Sentinel errors are compared with errors.Is. [IsFatal] separates
// misconfiguration that retrying cannot fix from transient connectivity failures.
package domain
