// Package server wires configuration, logging, metrics, the preview engine
// and the HTTP and WebSocket surfaces into one runnable server.
package server
