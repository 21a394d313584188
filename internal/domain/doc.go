// Package domain holds the shared vocabulary of the session layer: the wire
// envelope, the transport abstraction, sentinel errors, and the interfaces of
// external collaborators. It depends on nothing above the standard library so
// every other package can import it freely.
package domain
