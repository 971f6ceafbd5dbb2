// Package register implements external node-registration backends used
// by DNS-based bootstrap: publishing a node's address so future peers
// can discover it.
package register

import "context"

// Registrar is implemented by every registration backend (currently
// Route53; CoreDNS was evaluated and dropped — see DESIGN.md).
type Registrar interface {
	RegisterNode(ctx context.Context, nodeID, targetHost string, port int) error
	DeregisterNode(ctx context.Context, nodeID, targetHost string, port int) error
	RenewNode(ctx context.Context, nodeID, targetHost string, port int) error
	Close() error
}
