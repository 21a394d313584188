// Package broadcast implements the delayed table fan-out: rapid state
// changes on a table coalesce into a single delivery of the latest payload
// after a fixed delay, so viewers see the newest snapshot instead of every
// intermediate state. The optional Redis relay extends the same stream
// across instances.
package broadcast
