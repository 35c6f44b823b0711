package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateVote     = errors.New("member already voted on this item")
	ErrItemNotOpen       = errors.New("voting item is not open")
	ErrNotEligible       = errors.New("member is not eligible to vote")
	ErrInvalidDelegation = errors.New("invalid delegation")
	ErrAssemblyNotClosed = errors.New("assembly is not closed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
)

var (
	ErrMemberNotFound     = fmt.Errorf("%w: member", ErrNotFound)
	ErrAssemblyNotFound   = fmt.Errorf("%w: assembly", ErrNotFound)
	ErrVotingItemNotFound = fmt.Errorf("%w: voting item", ErrNotFound)

	ErrMemberEmailTaken = fmt.Errorf("%w: member email already registered", ErrConflict)

	ErrSelfDelegation        = fmt.Errorf("%w: giver and receiver are the same member", ErrInvalidDelegation)
	ErrDelegationExists      = fmt.Errorf("%w: giver already has an active delegation", ErrInvalidDelegation)
	ErrDelegationPhaseClosed = fmt.Errorf("%w: assembly is no longer scheduled", ErrInvalidDelegation)
	ErrReceiverInactive      = fmt.Errorf("%w: receiver is not an active member", ErrInvalidDelegation)
	ErrGiverInactive         = fmt.Errorf("%w: giver is not an active member", ErrInvalidDelegation)
	ErrGiverNotEligible      = fmt.Errorf("%w: giver is not eligible under the assembly voting rule", ErrInvalidDelegation)

	ErrDelegatedVote  = fmt.Errorf("%w: vote was delegated to a proxy", ErrNotEligible)
	ErrInactiveMember = fmt.Errorf("%w: member is inactive", ErrNotEligible)

	ErrAssemblyClosed        = fmt.Errorf("%w: assembly is closed", ErrInvalidTransition)
	ErrAssemblyNotInProgress = fmt.Errorf("%w: assembly is not in progress", ErrInvalidTransition)
)
