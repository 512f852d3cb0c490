package internal

import (
	"math"
	"time"
)

const (
	voteSkipMinMembers = 5
	voteSkipRatio      = 0.5
)

// VoteSkipEnabled reports whether skip voting is active: the host has it
// switched on and the party is large enough for a vote to mean anything.
func (p *Party) VoteSkipEnabled() bool {
	return p.Settings.VoteSkipEnabled && p.Members.Len() >= voteSkipMinMembers
}

// VoteSkipRequired is the number of distinct votes that triggers a skip,
// or 0 when voting is disabled.
func (p *Party) VoteSkipRequired() int {
	if !p.VoteSkipEnabled() {
		return 0
	}
	return int(math.Ceil(float64(p.Members.Len()) * voteSkipRatio))
}

// VoteState is the voteUpdate payload for the party.
func (p *Party) VoteState() ServerMessageVoteUpdatePayload {
	return ServerMessageVoteUpdatePayload{
		Votes:    len(p.VotesToSkip),
		Required: p.VoteSkipRequired(),
		Enabled:  p.VoteSkipEnabled(),
	}
}

// CastSkipVote records a vote from a member. Voting twice counts once.
// It reports whether the tally reached the threshold.
func (p *Party) CastSkipVote(id ClientID) (bool, error) {
	if !p.Members.Has(id) {
		return false, ErrUnauthorized
	}
	if !p.VoteSkipEnabled() {
		return false, ErrInvalidArgument
	}
	p.VotesToSkip[id] = struct{}{}
	return len(p.VotesToSkip) >= p.VoteSkipRequired(), nil
}

// ClearVotes resets the tally; every track change calls it.
func (p *Party) ClearVotes() {
	clear(p.VotesToSkip)
}

// SkipByVote advances to the next track, or stops at the end of the
// queue. There is no wraparound.
func (p *Party) SkipByVote(now time.Time) {
	p.ClearVotes()
	if p.HasNext() {
		p.CurrentIndex++
		p.Restart(now)
		return
	}
	p.Stop()
}
