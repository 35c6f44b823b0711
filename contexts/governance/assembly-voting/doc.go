// Package assemblyvoting implements general-assembly voting for the
// governance context.
//
// The module owns the assembly and voting-item state machines, proxy
// delegation between members, ballot casting with one-ballot-per-member
// enforcement, and proxy-weighted result aggregation with quorum and
// majority evaluation. Minutes generation and member notifications are
// delegated to collaborators behind ports.
package assemblyvoting
