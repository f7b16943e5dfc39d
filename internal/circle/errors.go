package circle

import (
	"errors"
	"fmt"
)

// Domain errors returned by circle commands. A command that returns one of
// these has made no change to the circle.
var (
	ErrNotAuthorized   = errors.New("you do not have permission to perform this action")
	ErrInvalidState    = errors.New("operation is not valid in the circle's current state")
	ErrAlreadyProposed = errors.New("an amount change is already awaiting approval")
	ErrAlreadyApproved = errors.New("you have already approved this amount change")
	ErrAlreadyMember   = errors.New("user is already a member of this circle")
	ErrInvalidAmount   = errors.New("amount must be positive and differ from the current amount")
	ErrInvalidRole     = errors.New("invited members must have the member role")
	ErrDuplicatePeriod = errors.New("a contribution has already been recorded for this period")
	ErrProposalPending = errors.New("contributions are paused while an amount change is pending")
	ErrUnknownUser     = errors.New("user not found")
	ErrUnknownCircle   = errors.New("circle not found or you are not a member")

	ErrNoProposal = fmt.Errorf("%w: no amount change is awaiting approval", ErrInvalidState)
)

var domainErrors = []error{
	ErrNotAuthorized,
	ErrInvalidState,
	ErrAlreadyProposed,
	ErrAlreadyApproved,
	ErrAlreadyMember,
	ErrInvalidAmount,
	ErrInvalidRole,
	ErrDuplicatePeriod,
	ErrProposalPending,
	ErrUnknownUser,
	ErrUnknownCircle,
}

// IsDomainError reports whether err is a rule violation rather than a
// storage or infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
