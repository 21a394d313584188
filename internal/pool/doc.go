// Package pool is the connection registry of the session layer. It owns
// every live connection, keeps each one's health and load classification
// current, evicts idle sessions on a fixed sweep, and drives the graceful
// shutdown drain. Admission enforces the per-table and global capacity caps
// and the one-connection-per-client invariant: a reconnecting client
// atomically replaces its previous session.
package pool
