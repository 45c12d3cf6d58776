// Package ports defines the interfaces that connect the relay core to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [Dialer]: opens a session to the destination store
//   - [Conn]: one request/reply session, owned by a single worker
//
// The application layer (internal/app) depends only on these interfaces.
// internal/adapters/redis implements them over TCP; tests substitute
// in-memory fakes to inject failures without a network.
package ports
