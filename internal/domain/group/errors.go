package group

import "errors"

var (
	ErrNotFound                = errors.New("group exchange not found")
	ErrNotOrganizer            = errors.New("only the organizer can perform this action")
	ErrNotParticipant          = errors.New("not a participant of this group exchange")
	ErrInvalidState            = errors.New("action not allowed in current group exchange state")
	ErrConflict                = errors.New("group exchange was modified concurrently")
	ErrAlreadyParticipant      = errors.New("user is already a participant")
	ErrParticipantNotFound     = errors.New("participant not found")
	ErrNoProviders             = errors.New("group exchange needs at least one provider")
	ErrNoReceivers             = errors.New("group exchange needs at least one receiver")
	ErrCustomSplitSum          = errors.New("custom split hours must sum to the total hours")
	ErrZeroWeights             = errors.New("weighted split needs positive weights on both sides")
	ErrUnconfirmedParticipants = errors.New("all participants must confirm before completion")
)
