package domain

import "deskrelay/errors"

// ResolveRecipient computes the addressing rule for a send.
// Members always address the operator pool, whoever they think they
// are talking to. Operators must name the member whose thread they are
// replying to; a missing target is a caller error, not a store error.
func ResolveRecipient(sender Participant, targetMemberID *string) (*string, error) {
	switch sender.Class {
	case ClassMember:
		return nil, nil
	case ClassOperator:
		if targetMemberID == nil || *targetMemberID == "" {
			return nil, errors.ErrMissingTarget
		}
		return targetMemberID, nil
	default:
		return nil, errors.ErrUnknownSender
	}
}
