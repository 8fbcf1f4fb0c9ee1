// Package server wires the HTTP surface of gatekeeper: the gate middleware
// in front of every route, the sign-in and sign-out endpoints, the /me
// identity endpoint, role simulation, Prometheus metrics, and the markdown
// content handler.
package server
