package entities

import "time"

// ProxyDelegation is unique per (AssemblyID, GiverID).
type ProxyDelegation struct {
	DelegationID string
	AssemblyID   string
	GiverID      string
	ReceiverID   string
	CreatedAt    time.Time
}

// DelegationView is the per-member delegation picture for one assembly.
type DelegationView struct {
	AssemblyID string
	MemberID   string
	Given      *ProxyDelegation
	Received   []ProxyDelegation
}
