package internal

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxChatLength = 500

// maxSeekSeconds is the largest position a time.Duration can hold.
const maxSeekSeconds = float64(math.MaxInt64 / int64(time.Second))

var allowedReactions = map[string]bool{
	"🔥": true, "❤️": true, "🎉": true, "😂": true, "👋": true, "💃": true,
}

// canControl reports whether c may drive playback.
func canControl(p *Party, c ClientID) bool {
	return p.IsHost(c) || (p.Settings.GuestControls && p.Members.Has(c))
}

func (pm *PartyManager) hostParty(id PartyID, c ClientID) (*Party, error) {
	p, err := pm.lookup(id)
	if err != nil {
		return nil, err
	}
	if !p.IsHost(c) {
		return nil, ErrUnauthorized
	}
	return p, nil
}

func (pm *PartyManager) controlParty(id PartyID, c ClientID) (*Party, error) {
	p, err := pm.lookup(id)
	if err != nil {
		return nil, err
	}
	if !canControl(p, c) {
		return nil, ErrUnauthorized
	}
	return p, nil
}

// ---------------------------------------------------------------------
// Membership and host
// ---------------------------------------------------------------------

func (pm *PartyManager) createParty(c ClientID, req ClientMessageCreatePartyPayload) (*Party, error) {
	now := pm.now()
	p := NewParty(pm.parties.NewCode(), req.Name, req.IsPublic, req.Mode, now)

	prof := profileFrom(req.ClientProfile, defaultHostName, defaultHostIcon)
	if prof.IdentityID == "" {
		prof.IdentityID = string(c)
	}
	p.AddMember(c, prof)
	p.assignHost(c)

	pm.parties.Insert(p)
	pm.transport.JoinRoom(p.ID, c)

	pm.send(c, ServerMessagePartyState, p.View(c, now))
	pm.broadcastRoster(p)
	pm.commit(p, now)

	log.Printf("Party %s created by %s (public=%t, mode=%s)", p.ID, c, p.IsPublic, p.Mode)
	return p, nil
}

// joinParty adds c to the party. A caller carrying the host identity
// reclaims host authority, whatever state the lifecycle is in.
func (pm *PartyManager) joinParty(c ClientID, req ClientMessageJoinPartyPayload) error {
	p, err := pm.lookup(req.PartyID)
	if err != nil {
		return err
	}
	now := pm.now()

	reclaim := p.IsHostIdentity(req.IdentityID)
	prof := profileFrom(req.ClientProfile, defaultGuestName, defaultAvatar)
	if reclaim {
		prof = profileFrom(req.ClientProfile, defaultHostName, defaultHostIcon)
	}
	p.AddMember(c, prof)
	if reclaim {
		p.ReclaimHost(c)
	}
	pm.transport.JoinRoom(p.ID, c)

	pm.send(c, ServerMessagePartyState, p.View(c, now))
	pm.info(p, fmt.Sprintf("%s joined the party", prof.DisplayName))
	pm.broadcastRoster(p)
	if reclaim {
		pm.broadcastHost(p)
		log.Printf("Party %s host reclaimed by %s", p.ID, c)
	}
	pm.commit(p, now)

	log.Printf("Client %s joined party %s", c, p.ID)
	return nil
}

// reconnectAsHost is the explicit reclaim path.
func (pm *PartyManager) reconnectAsHost(c ClientID, req ClientMessageReconnectAsHostPayload) error {
	p, err := pm.lookup(req.PartyID)
	if err != nil {
		return err
	}
	if !p.IsHostIdentity(req.IdentityID) {
		return errNotHost
	}
	now := pm.now()

	p.AddMember(c, profileFrom(req.ClientProfile, defaultHostName, defaultHostIcon))
	p.ReclaimHost(c)
	pm.transport.JoinRoom(p.ID, c)

	pm.send(c, ServerMessagePartyState, p.View(c, now))
	pm.broadcastRoster(p)
	pm.broadcastHost(p)
	pm.commit(p, now)

	log.Printf("Party %s host reclaimed by %s", p.ID, c)
	return nil
}

func (pm *PartyManager) updateSettings(c ClientID, req ClientMessageUpdateSettingsPayload) error {
	p, err := pm.hostParty(req.PartyID, c)
	if err != nil {
		return err
	}
	p.Settings = req.Settings.Apply(p.Settings)
	if !p.Settings.VoteSkipEnabled {
		p.ClearVotes()
	}

	pm.publish(p.ID, ServerMessageSettingsUpdate, ServerMessageSettingsUpdatePayload{Settings: p.Settings})
	pm.broadcastVotes(p)
	pm.commit(p, pm.now())
	return nil
}

func (pm *PartyManager) kickMember(c ClientID, req ClientMessageKickMemberPayload) error {
	p, err := pm.hostParty(req.PartyID, c)
	if err != nil {
		return err
	}
	target, ok := p.Members.Get(req.TargetID)
	if !ok {
		return fmt.Errorf("%w: %s is not a member", ErrInvalidArgument, req.TargetID)
	}
	if p.IsHost(req.TargetID) {
		return fmt.Errorf("%w: host cannot be kicked", ErrInvalidArgument)
	}

	p.RemoveMember(req.TargetID)
	pm.send(req.TargetID, ServerMessageKicked, ServerMessageTextPayload{Text: "You have been kicked by the host."})
	pm.transport.LeaveRoom(p.ID, req.TargetID)

	pm.info(p, fmt.Sprintf("%s was kicked.", target.DisplayName))
	pm.broadcastRoster(p)
	pm.commit(p, pm.now())

	log.Printf("Client %s kicked from party %s", req.TargetID, p.ID)
	return nil
}

// disconnect removes c from every party it belongs to. A departing host
// connection starts the grace window rather than an immediate handover.
func (pm *PartyManager) disconnect(c ClientID) {
	now := pm.now()
	for _, p := range pm.parties.All() {
		if !p.RemoveMember(c) {
			continue
		}
		pm.transport.LeaveRoom(p.ID, c)
		pm.broadcastRoster(p)
		if pm.evaluateHost(p, now) == HostUnchanged {
			pm.persist(p, now)
		}
		log.Printf("Client %s left party %s", c, p.ID)
	}
}

func (pm *PartyManager) endParty(c ClientID, req ClientMessagePartyPayload) error {
	p, err := pm.hostParty(req.PartyID, c)
	if err != nil {
		return err
	}
	log.Printf("Party %s ended by host %s", p.ID, c)
	pm.terminate(p, "The host has ended the party.")
	return nil
}

// ---------------------------------------------------------------------
// Queue
// ---------------------------------------------------------------------

func (pm *PartyManager) addTrack(c ClientID, req ClientMessageAddTrackPayload) error {
	p, err := pm.lookup(req.PartyID)
	if err != nil {
		return err
	}
	if !p.IsHost(c) {
		if !p.Members.Has(c) {
			return ErrUnauthorized
		}
		if !p.Settings.GuestQueueing {
			return errGuestQueueingDisabled
		}
	}

	now := pm.now()
	if _, err := p.AppendTrack(req.Track, pm.newTrackID(), now); err != nil {
		return err
	}
	pm.broadcastQueue(p)
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) removeTrack(c ClientID, req ClientMessageRemoveTrackPayload) error {
	p, err := pm.hostParty(req.PartyID, c)
	if err != nil {
		return err
	}
	if !p.RemoveTrack(req.TrackID) {
		return nil
	}

	now := pm.now()
	pm.broadcastQueue(p)
	pm.broadcastPlayback(p, now)
	pm.broadcastVotes(p)
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) changeIndex(c ClientID, req ClientMessageChangeIndexPayload) error {
	p, err := pm.controlParty(req.PartyID, c)
	if err != nil {
		return err
	}
	if req.NewIndex < 0 || req.NewIndex >= len(p.Queue) {
		return fmt.Errorf("%w: index %d outside queue of %d", ErrInvalidArgument, req.NewIndex, len(p.Queue))
	}

	now := pm.now()
	p.CurrentIndex = req.NewIndex
	p.ClearVotes()
	p.Restart(now)

	pm.broadcastVotes(p)
	pm.broadcastPlayback(p, now)
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) trackEnded(c ClientID, req ClientMessagePartyPayload) error {
	p, err := pm.hostParty(req.PartyID, c)
	if err != nil {
		return err
	}

	now := pm.now()
	p.AdvanceTrack(now)

	pm.broadcastVotes(p)
	pm.broadcastPlayback(p, now)
	pm.commit(p, now)
	return nil
}

// ---------------------------------------------------------------------
// Playback
// ---------------------------------------------------------------------

func (pm *PartyManager) play(c ClientID, req ClientMessagePartyPayload) error {
	p, err := pm.controlParty(req.PartyID, c)
	if err != nil {
		return err
	}
	now := pm.now()
	if p.IsPlaying {
		pm.broadcastPlayback(p, now)
		return nil
	}
	if _, ok := p.CurrentTrack(); !ok {
		return fmt.Errorf("%w: nothing to play", ErrInvalidArgument)
	}

	p.Resume(now)
	pm.broadcastPlayback(p, now)
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) pause(c ClientID, req ClientMessagePartyPayload) error {
	p, err := pm.controlParty(req.PartyID, c)
	if err != nil {
		return err
	}
	now := pm.now()
	if !p.IsPlaying {
		pm.broadcastPlayback(p, now)
		return nil
	}

	p.Pause(now)
	pm.broadcastPlayback(p, now)
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) seek(c ClientID, req ClientMessageSeekPayload) error {
	p, err := pm.controlParty(req.PartyID, c)
	if err != nil {
		return err
	}
	if req.Position < 0 || math.IsNaN(req.Position) || req.Position > maxSeekSeconds {
		return fmt.Errorf("%w: position %v", ErrInvalidArgument, req.Position)
	}

	now := pm.now()
	p.Seek(time.Duration(math.Round(req.Position*1000))*time.Millisecond, now)
	pm.broadcastPlayback(p, now)
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) voteSkip(c ClientID, req ClientMessagePartyPayload) error {
	p, err := pm.lookup(req.PartyID)
	if err != nil {
		return err
	}
	skip, err := p.CastSkipVote(c)
	if err != nil {
		return err
	}

	now := pm.now()
	pm.broadcastVotes(p)
	if skip {
		p.SkipByVote(now)
		pm.broadcastVotes(p)
		pm.broadcastPlayback(p, now)
		pm.info(p, "Skipped by vote!")
		log.Printf("Party %s skipped track by vote", p.ID)
	}
	pm.commit(p, now)
	return nil
}

func (pm *PartyManager) changeTheme(c ClientID, req ClientMessageChangeThemePayload) error {
	p, err := pm.hostParty(req.PartyID, c)
	if err != nil {
		return err
	}
	if req.ThemeIndex < 0 {
		return fmt.Errorf("%w: theme %d", ErrInvalidArgument, req.ThemeIndex)
	}
	p.ThemeIndex = req.ThemeIndex
	pm.publish(p.ID, ServerMessageThemeUpdate, ServerMessageThemeUpdatePayload{ThemeIndex: p.ThemeIndex})
	pm.commit(p, pm.now())
	return nil
}

// ---------------------------------------------------------------------
// Relays
// ---------------------------------------------------------------------

// sendReaction relays an emoji to the room. Relays leave the party
// untouched and unknown parties are ignored.
func (pm *PartyManager) sendReaction(c ClientID, req ClientMessageSendReactionPayload) error {
	p, ok := pm.parties.Get(req.PartyID)
	if !ok {
		return nil
	}
	if !allowedReactions[req.Emoji] {
		return fmt.Errorf("%w: reaction %q", ErrInvalidArgument, req.Emoji)
	}
	pm.publish(p.ID, ServerMessageReaction, ServerMessageReactionPayload{Emoji: req.Emoji, SenderID: c})
	return nil
}

// sendChatMessage relays a chat line to the room. Unknown parties are
// ignored.
func (pm *PartyManager) sendChatMessage(c ClientID, req ClientMessageSendChatMessagePayload) error {
	p, ok := pm.parties.Get(req.PartyID)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return fmt.Errorf("%w: empty chat message", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = defaultGuestName
	}

	pm.publish(p.ID, ServerMessageChatMessage, ServerMessageChatMessagePayload{
		ID:        uuid.NewString(),
		SenderID:  c,
		Username:  username,
		Text:      text,
		Timestamp: pm.now().UnixMilli(),
	})
	return nil
}
