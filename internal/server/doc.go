// Package server implements a small local preview server: exact-path HTTP
// routes, one WebSocket upgrade route with a single tracked session, URLs for
// loopback and LAN access, and a start/stop lifecycle whose listening state is
// observable through a replaying signal.
//
// The implementation is organized into specialized files for configuration,
// routing, session tracking, URL building and the server lifecycle.
package server
