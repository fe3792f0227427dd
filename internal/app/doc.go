// Package app wires configuration, the acquisition pipeline, and the HTTP
// transport into a runnable server.
package app
