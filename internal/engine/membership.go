package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/controller/membership"
)

// AddMembership commits a manual membership edge and starts a verification
// cycle over both endpoints, returning the cycle id. Both sides need
// re-verification because some backends diff memberships from the member
// and others from the group.
func (e *Engine) AddMembership(groupID, memberID uint, flags membership.Flags) (string, error) {
	if _, err := membership.Create(e.ledger.DB(), groupID, memberID, flags); err != nil {
		return "", err
	}

	log.Info().Uint("group", groupID).Uint("member", memberID).
		Msg("manual membership edge added")

	return e.triggerEdge(groupID, memberID)
}

// RemoveMembership removes a manual membership edge and starts a
// verification cycle over both endpoints, returning the cycle id.
func (e *Engine) RemoveMembership(groupID, memberID uint) (string, error) {
	if err := membership.Delete(e.ledger.DB(), groupID, memberID); err != nil {
		return "", err
	}

	log.Info().Uint("group", groupID).Uint("member", memberID).
		Msg("manual membership edge removed")

	return e.triggerEdge(groupID, memberID)
}

func (e *Engine) triggerEdge(groupID, memberID uint) (string, error) {
	cycleID, err := e.TriggerMapping(memberID, true)
	if err != nil {
		return "", err
	}

	if _, err := e.queue.Enqueue(cycleID, groupID, true); err != nil {
		return "", err
	}

	return cycleID, nil
}
