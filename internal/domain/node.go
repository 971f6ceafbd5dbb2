package domain

import "fmt"

// NodeRef identifies a ring participant: its network address and its
// position on the ring.
type NodeRef struct {
	ID   ID
	IP   string
	Port int
}

// Addr returns the "ip:port" form used to dial this node.
func (n NodeRef) Addr() string {
	return fmt.Sprintf("%s:%d", n.IP, n.Port)
}

// Equal reports whether two node references name the same ring member.
func (n NodeRef) Equal(o NodeRef) bool {
	return n.ID.Equal(o.ID)
}

// IsZero reports whether n is the unset NodeRef.
func (n NodeRef) IsZero() bool {
	return n.ID == nil
}
