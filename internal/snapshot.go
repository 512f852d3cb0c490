package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const snapshotVersion = 1

// partySnapshot is the durable form of a Party. Connection ids are
// transient, so only the host identity is kept; members and votes are
// recorded for diagnostics and dropped on restore.
type partySnapshot struct {
	Version        int              `json:"version"`
	ID             PartyID          `json:"id"`
	Name           string           `json:"name"`
	Mode           PartyMode        `json:"mode"`
	IsPublic       bool             `json:"isPublic"`
	HostIdentityID string           `json:"hostIdentityId"`
	Queue          []Track          `json:"queue"`
	CurrentIndex   int              `json:"currentIndex"`
	IsPlaying      bool             `json:"isPlaying"`
	StartedAt      int64            `json:"startedAt"`
	ElapsedMs      int64            `json:"elapsedMs"`
	ThemeIndex     int              `json:"themeIndex"`
	Settings       SettingsPatch    `json:"settings"`
	Members        []snapshotMember `json:"members"`
	VotesToSkip    []ClientID       `json:"votesToSkip"`
	CreatedAt      int64            `json:"createdAt"`
	LastActiveAt   int64            `json:"lastActiveAt"`
}

type snapshotMember struct {
	ID ClientID `json:"id"`
	Profile
}

// EncodeSnapshot renders p as a snapshot document. ElapsedMs holds the
// position at now so a restored clock resumes from where it was.
func EncodeSnapshot(p *Party, now time.Time) ([]byte, error) {
	gc, gq, vs := p.Settings.GuestControls, p.Settings.GuestQueueing, p.Settings.VoteSkipEnabled
	snap := partySnapshot{
		Version:        snapshotVersion,
		ID:             p.ID,
		Name:           p.Name,
		Mode:           p.Mode,
		IsPublic:       p.IsPublic,
		HostIdentityID: p.HostIdentityID,
		Queue:          p.Queue,
		CurrentIndex:   p.CurrentIndex,
		IsPlaying:      p.IsPlaying,
		StartedAt:      unixMilli(p.StartedAt),
		ElapsedMs:      p.Position(now).Milliseconds(),
		ThemeIndex:     p.ThemeIndex,
		Settings:       SettingsPatch{GuestControls: &gc, GuestQueueing: &gq, VoteSkipEnabled: &vs},
		Members:        []snapshotMember{},
		VotesToSkip:    []ClientID{},
		CreatedAt:      unixMilli(p.CreatedAt),
		LastActiveAt:   unixMilli(p.LastActiveAt),
	}
	if snap.Queue == nil {
		snap.Queue = []Track{}
	}
	for _, m := range p.Members.All() {
		snap.Members = append(snap.Members, snapshotMember{ID: m.ID, Profile: m.Profile})
		if _, voted := p.VotesToSkip[m.ID]; voted {
			snap.VotesToSkip = append(snap.VotesToSkip, m.ID)
		}
	}
	return json.Marshal(snap)
}

// DecodeSnapshot rebuilds a Party from a snapshot document. The result is
// dormant: no members, no votes, no host connection and a paused clock
// at the stored position. Missing settings take their defaults.
func DecodeSnapshot(data []byte) (*Party, error) {
	var snap partySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("decode snapshot %s: unsupported version %d", snap.ID, snap.Version)
	}
	if strings.TrimSpace(string(snap.ID)) == "" {
		return nil, errors.New("decode snapshot: missing id")
	}

	created := fromUnixMilli(snap.CreatedAt)
	p := NewParty(snap.ID, snap.Name, snap.IsPublic, snap.Mode, created)
	p.HostIdentityID = snap.HostIdentityID
	p.Queue = snap.Queue
	p.CurrentIndex = snap.CurrentIndex
	p.clampIndex()
	p.StartedAt = fromUnixMilli(snap.StartedAt)
	if snap.ElapsedMs > 0 {
		p.Elapsed = time.Duration(snap.ElapsedMs) * time.Millisecond
	}
	p.IsPlaying = false
	p.ThemeIndex = max(snap.ThemeIndex, 0)
	p.Settings = snap.Settings.Apply(DefaultSettings())
	if last := fromUnixMilli(snap.LastActiveAt); !last.IsZero() {
		p.LastActiveAt = last
	}
	return p, nil
}
