package internal

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	partyIDLength    = 6
	defaultPartyName = "Music Party"
	defaultGuestName = "Guest"
	defaultHostName  = "Host"
	defaultAvatar    = "👤"
	defaultHostIcon  = "👑"
)

// PartyID is the short, human-typeable code of a Party.
type PartyID string

// NewPartyID returns a fixed-length uppercase alphanumeric code.
func NewPartyID() PartyID {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return PartyID(strings.ToUpper(raw[:partyIDLength]))
}

// PartyMode is the categorical kind of a Party.
type PartyMode string

const (
	PartyModeParty PartyMode = "party"
	PartyModeMovie PartyMode = "movie"
)

func normalizeMode(m PartyMode) PartyMode {
	if m == PartyModeMovie {
		return PartyModeMovie
	}
	return PartyModeParty
}

// Settings are the host-controlled toggles of a Party.
type Settings struct {
	GuestControls   bool `json:"guestControls"`
	GuestQueueing   bool `json:"guestQueueing"`
	VoteSkipEnabled bool `json:"voteSkipEnabled"`
}

// DefaultSettings are applied to new parties and merged into
// snapshots that predate a setting.
func DefaultSettings() Settings {
	return Settings{
		GuestControls:   false,
		GuestQueueing:   true,
		VoteSkipEnabled: true,
	}
}

// SettingsPatch is a partial Settings; nil fields are left unchanged.
type SettingsPatch struct {
	GuestControls   *bool `json:"guestControls,omitempty"`
	GuestQueueing   *bool `json:"guestQueueing,omitempty"`
	VoteSkipEnabled *bool `json:"voteSkipEnabled,omitempty"`
}

// Apply returns s with every non-nil field of the patch applied.
func (patch SettingsPatch) Apply(s Settings) Settings {
	if patch.GuestControls != nil {
		s.GuestControls = *patch.GuestControls
	}
	if patch.GuestQueueing != nil {
		s.GuestQueueing = *patch.GuestQueueing
	}
	if patch.VoteSkipEnabled != nil {
		s.VoteSkipEnabled = *patch.VoteSkipEnabled
	}
	return s
}

// Profile describes a participant bound to one connection.
type Profile struct {
	DisplayName string `json:"username"`
	Avatar      string `json:"avatar"`
	IdentityID  string `json:"identityId"`
}

func profileFrom(cp ClientProfile, defaultName, defaultIcon string) Profile {
	p := Profile{
		DisplayName: strings.TrimSpace(cp.Username),
		Avatar:      cp.Avatar,
		IdentityID:  cp.IdentityID,
	}
	if p.DisplayName == "" {
		p.DisplayName = defaultName
	}
	if p.Avatar == "" {
		p.Avatar = defaultIcon
	}
	return p
}

// Member is one entry of a MemberList.
type Member struct {
	ID ClientID
	Profile
}

// MemberInfo is the public view of a member sent to clients.
// Identity ids are never exposed.
type MemberInfo struct {
	ID       ClientID `json:"id"`
	Username string   `json:"username"`
	Avatar   string   `json:"avatar"`
	IsHost   bool     `json:"isHost"`
}

// MemberList maps connection ids to profiles and remembers join order,
// so the earliest-joined member is an explicit query rather than an
// accident of map iteration.
type MemberList struct {
	order []ClientID
	byID  map[ClientID]Profile
}

func NewMemberList() *MemberList {
	return &MemberList{byID: make(map[ClientID]Profile)}
}

// Add inserts a member at the end of the join order. Re-adding an
// existing member updates the profile and keeps its position.
func (ml *MemberList) Add(id ClientID, p Profile) {
	if _, ok := ml.byID[id]; !ok {
		ml.order = append(ml.order, id)
	}
	ml.byID[id] = p
}

// Remove deletes a member and reports whether it was present.
func (ml *MemberList) Remove(id ClientID) bool {
	if _, ok := ml.byID[id]; !ok {
		return false
	}
	delete(ml.byID, id)
	for i, cid := range ml.order {
		if cid == id {
			ml.order = append(ml.order[:i], ml.order[i+1:]...)
			break
		}
	}
	return true
}

func (ml *MemberList) Get(id ClientID) (Profile, bool) {
	p, ok := ml.byID[id]
	return p, ok
}

func (ml *MemberList) Has(id ClientID) bool {
	_, ok := ml.byID[id]
	return ok
}

func (ml *MemberList) Len() int {
	return len(ml.order)
}

// First returns the earliest-joined remaining member.
func (ml *MemberList) First() (ClientID, bool) {
	if len(ml.order) == 0 {
		return "", false
	}
	return ml.order[0], true
}

// FindIdentity returns the earliest-joined connection bound to identity.
func (ml *MemberList) FindIdentity(identity string) (ClientID, bool) {
	if identity == "" {
		return "", false
	}
	for _, id := range ml.order {
		if ml.byID[id].IdentityID == identity {
			return id, true
		}
	}
	return "", false
}

// All returns the members in join order.
func (ml *MemberList) All() []Member {
	out := make([]Member, 0, len(ml.order))
	for _, id := range ml.order {
		out = append(out, Member{ID: id, Profile: ml.byID[id]})
	}
	return out
}

// Clear removes every member.
func (ml *MemberList) Clear() {
	ml.order = nil
	ml.byID = make(map[ClientID]Profile)
}

// Party is one listening session. It is owned by the PartyManager
// goroutine and must only be mutated from there.
type Party struct {
	ID       PartyID
	Name     string
	Mode     PartyMode
	IsPublic bool

	// HostConnectionID is the connection currently exercising host
	// authority. HostIdentityID is the person, and survives reconnects.
	HostConnectionID ClientID
	HostIdentityID   string
	// HostDisconnectedAt is non-zero while the host grace window runs.
	HostDisconnectedAt time.Time

	Queue        []Track
	CurrentIndex int
	IsPlaying    bool
	StartedAt    time.Time
	Elapsed      time.Duration

	VotesToSkip map[ClientID]struct{}
	Members     *MemberList

	ThemeIndex int
	Settings   Settings

	CreatedAt    time.Time
	LastActiveAt time.Time
}

// NewParty creates a Party with defaults applied and no members.
func NewParty(id PartyID, name string, isPublic bool, mode PartyMode, now time.Time) *Party {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultPartyName
	}
	return &Party{
		ID:           id,
		Name:         name,
		Mode:         normalizeMode(mode),
		IsPublic:     isPublic,
		VotesToSkip:  make(map[ClientID]struct{}),
		Members:      NewMemberList(),
		Settings:     DefaultSettings(),
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// AddMember joins a connection to the party.
func (p *Party) AddMember(id ClientID, prof Profile) {
	p.Members.Add(id, prof)
}

// RemoveMember drops a connection from the roster and from the vote
// tally. It reports whether the connection was a member.
func (p *Party) RemoveMember(id ClientID) bool {
	delete(p.VotesToSkip, id)
	return p.Members.Remove(id)
}

// IsEmpty checks if the party has no members
func (p *Party) IsEmpty() bool {
	return p.Members.Len() == 0
}

// MemberInfo returns the public roster in join order.
func (p *Party) MemberInfo() []MemberInfo {
	all := p.Members.All()
	out := make([]MemberInfo, 0, len(all))
	for _, m := range all {
		out = append(out, MemberInfo{
			ID:       m.ID,
			Username: m.DisplayName,
			Avatar:   m.Avatar,
			IsHost:   p.IsHost(m.ID),
		})
	}
	return out
}

// PartyView is the full state sent to a joining or creating connection.
type PartyView struct {
	ID               PartyID                        `json:"id"`
	Name             string                         `json:"name"`
	Mode             PartyMode                      `json:"mode"`
	IsPublic         bool                           `json:"isPublic"`
	HostConnectionID ClientID                       `json:"hostConnectionId"`
	IsHost           bool                           `json:"isHost"`
	Queue            []Track                        `json:"queue"`
	CurrentIndex     int                            `json:"currentIndex"`
	IsPlaying        bool                           `json:"isPlaying"`
	StartedAt        int64                          `json:"startedAt"`
	ElapsedMs        int64                          `json:"elapsedMs"`
	ServerTime       int64                          `json:"serverTime"`
	ThemeIndex       int                            `json:"themeIndex"`
	Settings         Settings                       `json:"settings"`
	Size             int                            `json:"size"`
	Members          []MemberInfo                   `json:"members"`
	Votes            ServerMessageVoteUpdatePayload `json:"votes"`
	CreatedAt        int64                          `json:"createdAt"`
}

// View renders the party as seen by the given connection.
func (p *Party) View(viewer ClientID, now time.Time) PartyView {
	queue := make([]Track, len(p.Queue))
	copy(queue, p.Queue)
	return PartyView{
		ID:               p.ID,
		Name:             p.Name,
		Mode:             p.Mode,
		IsPublic:         p.IsPublic,
		HostConnectionID: p.HostConnectionID,
		IsHost:           viewer != "" && p.IsHost(viewer),
		Queue:            queue,
		CurrentIndex:     p.CurrentIndex,
		IsPlaying:        p.IsPlaying,
		StartedAt:        unixMilli(p.StartedAt),
		ElapsedMs:        p.Position(now).Milliseconds(),
		ServerTime:       now.UnixMilli(),
		ThemeIndex:       p.ThemeIndex,
		Settings:         p.Settings,
		Size:             p.Members.Len(),
		Members:          p.MemberInfo(),
		Votes:            p.VoteState(),
		CreatedAt:        p.CreatedAt.UnixMilli(),
	}
}

// PublicPartyInfo is one entry of the public party listing.
type PublicPartyInfo struct {
	ID          PartyID   `json:"id"`
	Name        string    `json:"name"`
	Mode        PartyMode `json:"mode"`
	MemberCount int       `json:"memberCount"`
	NowPlaying  string    `json:"nowPlaying"`
}

func (p *Party) PublicInfo() PublicPartyInfo {
	nowPlaying := "Nothing playing"
	if t, ok := p.CurrentTrack(); ok {
		nowPlaying = t.Title
	}
	return PublicPartyInfo{
		ID:          p.ID,
		Name:        p.Name,
		Mode:        p.Mode,
		MemberCount: p.Members.Len(),
		NowPlaying:  nowPlaying,
	}
}

// unixMilli is time.UnixMilli with the zero time mapped to 0.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
