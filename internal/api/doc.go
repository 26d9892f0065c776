// Package api implements the HTTP REST API and WebSocket server for the
// BeHome bridge.
//
// This package provides:
//   - REST endpoints for device reads, commands, polling, and credentials
//   - WebSocket hub for real-time state change broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - Prometheus metrics exposition
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between user interfaces and the device registry + MQTT
// bus. Device commands are published to the MQTT command topics where the
// bridge service translates them for the cloud; state changes flow back via
// MQTT subscriptions which are broadcast to WebSocket clients. The server
// never talks to the cloud directly.
//
// # Security
//
// Authentication uses JWT tokens issued to the built-in operator account.
// WebSocket connections use single-use tickets to prevent token leakage in
// URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT. Reads and WebSocket connections work,
// only device commands and the state relay are disabled.
package api
