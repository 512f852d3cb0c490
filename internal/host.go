package internal

import "time"

const defaultHostGrace = 120 * time.Second

// HostState is the position of a Party in the host lifecycle.
type HostState string

const (
	// HostStateActive: a connected member holds host authority.
	HostStateActive HostState = "active"
	// HostStateGrace: the host connection dropped; reassignment is deferred.
	HostStateGrace HostState = "grace"
	// HostStateDormant: no host connection and nobody present.
	HostStateDormant HostState = "dormant"
	// HostStateUnclaimed: no host connection but members are present.
	// It resolves to active on the next evaluation.
	HostStateUnclaimed HostState = "unclaimed"
)

// HostTransition is the outcome of one lifecycle evaluation.
type HostTransition int

const (
	HostUnchanged HostTransition = iota
	HostClaimed
	HostGraceStarted
	HostReassigned
	HostWentDormant
)

func (t HostTransition) String() string {
	switch t {
	case HostClaimed:
		return "claimed"
	case HostGraceStarted:
		return "graceStarted"
	case HostReassigned:
		return "reassigned"
	case HostWentDormant:
		return "dormant"
	default:
		return "unchanged"
	}
}

// IsHost reports whether conn may exercise host authority. A host's
// connection id changes across reconnects while their identity does
// not, so both are checked.
func (p *Party) IsHost(conn ClientID) bool {
	if conn == "" {
		return false
	}
	if conn == p.HostConnectionID {
		return true
	}
	if p.HostIdentityID == "" {
		return false
	}
	prof, ok := p.Members.Get(conn)
	return ok && prof.IdentityID == p.HostIdentityID
}

// IsHostIdentity reports whether identity belongs to the host.
func (p *Party) IsHostIdentity(identity string) bool {
	return identity != "" && identity == p.HostIdentityID
}

// HostState derives the lifecycle state from the party fields.
func (p *Party) HostState() HostState {
	switch {
	case p.HostConnectionID == "" && p.IsEmpty():
		return HostStateDormant
	case p.HostConnectionID == "":
		return HostStateUnclaimed
	case p.Members.Has(p.HostConnectionID):
		return HostStateActive
	default:
		return HostStateGrace
	}
}

// ReclaimHost binds host authority to conn, cancelling any grace
// window. conn must already be a member.
func (p *Party) ReclaimHost(conn ClientID) {
	p.HostConnectionID = conn
	p.HostDisconnectedAt = time.Time{}
}

// assignHost hands the host connection to a member. The host identity
// stays with the original host so they can reclaim later; it is only
// set when the party has none yet.
func (p *Party) assignHost(conn ClientID) {
	p.HostConnectionID = conn
	p.HostDisconnectedAt = time.Time{}
	if p.HostIdentityID != "" {
		return
	}
	if prof, ok := p.Members.Get(conn); ok && prof.IdentityID != "" {
		p.HostIdentityID = prof.IdentityID
	} else {
		p.HostIdentityID = string(conn)
	}
}

// EvaluateHost applies the host lifecycle rules at time now. Ties are
// broken by join order so every evaluation of the same roster picks the
// same member.
func (p *Party) EvaluateHost(now time.Time, grace time.Duration) HostTransition {
	switch p.HostState() {
	case HostStateUnclaimed:
		first, _ := p.Members.First()
		p.assignHost(first)
		return HostClaimed

	case HostStateActive:
		p.HostDisconnectedAt = time.Time{}
		return HostUnchanged

	case HostStateGrace:
		if conn, ok := p.Members.FindIdentity(p.HostIdentityID); ok {
			p.ReclaimHost(conn)
			return HostClaimed
		}
		if p.HostDisconnectedAt.IsZero() {
			p.HostDisconnectedAt = now
			return HostGraceStarted
		}
		if now.Sub(p.HostDisconnectedAt) <= grace {
			return HostUnchanged
		}
		if first, ok := p.Members.First(); ok {
			p.assignHost(first)
			return HostReassigned
		}
		p.goDormant(now)
		return HostWentDormant

	default:
		return HostUnchanged
	}
}

// goDormant clears host authority and freezes playback; nobody is left
// to drive or hear it.
func (p *Party) goDormant(now time.Time) {
	p.HostConnectionID = ""
	p.HostDisconnectedAt = time.Time{}
	if p.IsPlaying {
		p.Pause(now)
	}
}
