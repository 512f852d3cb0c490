package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/JDRadatti/listenparty/internal/store"
	"github.com/google/uuid"
)

// buffer size for PartyManager channels
const (
	partyManagerBufferSize = 256
	defaultSyncInterval    = 5 * time.Second
	defaultPartyTTL        = 24 * time.Hour
)

// PartyManagerCommandType lists all commands sent to the PartyManager.
type PartyManagerCommandType string

const (
	PartyManagerCommandClientMessage PartyManagerCommandType = "clientMessage"
	PartyManagerCommandDisconnect    PartyManagerCommandType = "clientDisconnected"
	PartyManagerCommandSweep         PartyManagerCommandType = "sweep"
	PartyManagerCommandQuery         PartyManagerCommandType = "query"
)

// PartyManagerCommand wraps a command and its payload,
// used for communicating with the PartyManager goroutine.
type PartyManagerCommand struct {
	Type    PartyManagerCommandType
	Client  ClientID
	Payload any
}

// PartyManagerClientMessagePayload carries one decoded inbound event.
type PartyManagerClientMessagePayload struct {
	Type ClientMessageType
	Body any
}

// PartyManagerQueryPayload runs Fn inside the event loop and closes Done.
type PartyManagerQueryPayload struct {
	Fn   func(r *Registry, now time.Time)
	Done chan struct{}
}

// PartyManagerOptions tunes timers and collaborators. Zero values take
// the defaults.
type PartyManagerOptions struct {
	HostGrace    time.Duration
	PartyTTL     time.Duration
	SyncInterval time.Duration
	// Persister receives snapshots after every accepted mutation. Nil
	// runs the manager memory-only.
	Persister *Persister
	Now       func() time.Time
}

// PartyManager owns all Parties and is the only thing that mutates them.
//
// It runs as its own goroutine, processing commands through its internal
// `Commands` channel, so each event is applied to completion before the
// next one, for any party, observes state. The periodic sweep is a
// command on the same channel.
type PartyManager struct {
	parties   *Registry
	transport Transport
	persister *Persister

	Commands chan PartyManagerCommand
	done     chan struct{}

	HostGrace    time.Duration
	PartyTTL     time.Duration
	SyncInterval time.Duration

	now        func() time.Time
	newTrackID func() string
}

// NewPartyManager returns a PartyManager that publishes through t.
// The caller starts it with Run and RunSweep.
func NewPartyManager(t Transport, opts PartyManagerOptions) *PartyManager {
	pm := &PartyManager{
		parties:      NewRegistry(),
		transport:    t,
		persister:    opts.Persister,
		Commands:     make(chan PartyManagerCommand, partyManagerBufferSize),
		done:         make(chan struct{}),
		HostGrace:    opts.HostGrace,
		PartyTTL:     opts.PartyTTL,
		SyncInterval: opts.SyncInterval,
		now:          opts.Now,
		newTrackID:   uuid.NewString,
	}
	if pm.HostGrace <= 0 {
		pm.HostGrace = defaultHostGrace
	}
	if pm.PartyTTL <= 0 {
		pm.PartyTTL = defaultPartyTTL
	}
	if pm.SyncInterval <= 0 {
		pm.SyncInterval = defaultSyncInterval
	}
	if pm.now == nil {
		pm.now = time.Now
	}
	return pm
}

// Restore seeds the registry from every stored snapshot. Each restored
// party is dormant. It must be called before Run.
func (pm *PartyManager) Restore(ctx context.Context, st store.Store) (int, error) {
	docs, err := st.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}
	restored := 0
	for _, doc := range docs {
		p, err := DecodeSnapshot(doc)
		if err != nil {
			log.Printf("Skipping unreadable snapshot: %v", err)
			continue
		}
		pm.parties.Insert(p)
		restored++
	}
	return restored, nil
}

// Run is the main loop of the PartyManager. Once ctx is done it applies
// the commands already buffered and returns.
func (pm *PartyManager) Run(ctx context.Context) {
	defer close(pm.done)
	for {
		select {
		case <-ctx.Done():
			pm.drain()
			return
		case cmd := <-pm.Commands:
			pm.handleCommand(cmd)
		}
	}
}

func (pm *PartyManager) drain() {
	for {
		select {
		case cmd := <-pm.Commands:
			pm.handleCommand(cmd)
		default:
			return
		}
	}
}

// Done is closed when Run has returned.
func (pm *PartyManager) Done() <-chan struct{} {
	return pm.done
}

// RunSweep sends a PartyManagerCommandSweep every SyncInterval until ctx
// is done.
func (pm *PartyManager) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(pm.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.SendCommand(PartyManagerCommand{Type: PartyManagerCommandSweep})
		}
	}
}

// SendCommand safely queues a command for the PartyManager goroutine.
// If the buffer is full, the command is dropped. Disconnects are never
// dropped: they wait for room unless the loop has stopped.
func (pm *PartyManager) SendCommand(cmd PartyManagerCommand) {
	if cmd.Type == PartyManagerCommandDisconnect {
		select {
		case pm.Commands <- cmd:
		case <-pm.done:
		}
		return
	}
	select {
	case pm.Commands <- cmd:
	default:
		log.Printf("PartyManager command buffer full, dropping %s", cmd.Type)
	}
}

// Do runs fn inside the event loop and waits for it to finish.
func (pm *PartyManager) Do(ctx context.Context, fn func(r *Registry, now time.Time)) error {
	q := PartyManagerQueryPayload{Fn: fn, Done: make(chan struct{})}
	select {
	case pm.Commands <- PartyManagerCommand{Type: PartyManagerCommandQuery, Payload: q}:
	case <-pm.done:
		return errors.New("party manager stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-q.Done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleCommand routes and processes PartyManagerCommands.
func (pm *PartyManager) handleCommand(cmd PartyManagerCommand) {
	switch cmd.Type {
	case PartyManagerCommandClientMessage:
		msg := cmd.Payload.(PartyManagerClientMessagePayload)
		if err := pm.handleClientMessage(cmd.Client, msg); err != nil {
			pm.reportError(cmd.Client, msg.Type, err)
		}

	case PartyManagerCommandDisconnect:
		pm.disconnect(cmd.Client)

	case PartyManagerCommandSweep:
		pm.sweep(pm.now())

	case PartyManagerCommandQuery:
		q := cmd.Payload.(PartyManagerQueryPayload)
		q.Fn(pm.parties, pm.now())
		close(q.Done)

	default:
		log.Printf("Unknown party manager command %s", cmd.Type)
	}
}

// handleClientMessage applies one inbound event.
func (pm *PartyManager) handleClientMessage(c ClientID, msg PartyManagerClientMessagePayload) error {
	switch msg.Type {
	case ClientMessageCreateParty:
		_, err := pm.createParty(c, msg.Body.(ClientMessageCreatePartyPayload))
		return err
	case ClientMessageJoinParty:
		return pm.joinParty(c, msg.Body.(ClientMessageJoinPartyPayload))
	case ClientMessageReconnectAsHost:
		return pm.reconnectAsHost(c, msg.Body.(ClientMessageReconnectAsHostPayload))
	case ClientMessageUpdateSettings:
		return pm.updateSettings(c, msg.Body.(ClientMessageUpdateSettingsPayload))
	case ClientMessageKickMember:
		return pm.kickMember(c, msg.Body.(ClientMessageKickMemberPayload))
	case ClientMessageChangeTheme:
		return pm.changeTheme(c, msg.Body.(ClientMessageChangeThemePayload))
	case ClientMessageChangeIndex:
		return pm.changeIndex(c, msg.Body.(ClientMessageChangeIndexPayload))
	case ClientMessageAddTrack:
		return pm.addTrack(c, msg.Body.(ClientMessageAddTrackPayload))
	case ClientMessageRemoveTrack:
		return pm.removeTrack(c, msg.Body.(ClientMessageRemoveTrackPayload))
	case ClientMessageVoteSkip:
		return pm.voteSkip(c, msg.Body.(ClientMessagePartyPayload))
	case ClientMessagePlay:
		return pm.play(c, msg.Body.(ClientMessagePartyPayload))
	case ClientMessagePause:
		return pm.pause(c, msg.Body.(ClientMessagePartyPayload))
	case ClientMessageSeek:
		return pm.seek(c, msg.Body.(ClientMessageSeekPayload))
	case ClientMessageTrackEnded:
		return pm.trackEnded(c, msg.Body.(ClientMessagePartyPayload))
	case ClientMessageEndParty:
		return pm.endParty(c, msg.Body.(ClientMessagePartyPayload))
	case ClientMessageSendReaction:
		return pm.sendReaction(c, msg.Body.(ClientMessageSendReactionPayload))
	case ClientMessageSendChatMessage:
		return pm.sendChatMessage(c, msg.Body.(ClientMessageSendChatMessagePayload))
	case ClientMessageGetPublicParties:
		pm.send(c, ServerMessagePublicPartiesList, ServerMessagePublicPartiesListPayload{
			Parties: pm.parties.Public(),
		})
		return nil
	default:
		return fmt.Errorf("%w: unknown event %s", ErrInvalidArgument, msg.Type)
	}
}

// reportError tells the caller about errors that carry a notice and
// drops the rest.
func (pm *PartyManager) reportError(c ClientID, reqType ClientMessageType, err error) {
	var notice *NoticeError
	if errors.As(err, &notice) {
		pm.send(c, ServerMessageError, ServerMessageErrorPayload{
			Code:        notice.Code,
			Text:        notice.Text,
			RequestType: reqType,
		})
		return
	}
	log.Printf("Dropped %s from %s: %v", reqType, c, err)
}

// lookup returns the party or the not-found notice.
func (pm *PartyManager) lookup(id PartyID) (*Party, error) {
	p, ok := pm.parties.Get(id)
	if !ok {
		return nil, errPartyNotFound
	}
	return p, nil
}

// sweep is the periodic pass over every party: expiry, clock sync and
// host lifecycle.
func (pm *PartyManager) sweep(now time.Time) {
	for _, p := range pm.parties.All() {
		if now.Sub(p.LastActiveAt) > pm.PartyTTL {
			log.Printf("Party %s expired after %v idle", p.ID, now.Sub(p.LastActiveAt).Round(time.Second))
			pm.terminate(p, "Party expired due to inactivity.")
			continue
		}
		if p.IsPlaying {
			pm.publish(p.ID, ServerMessageSync, p.SyncState(now))
		}
		pm.evaluateHost(p, now)
	}
}

// evaluateHost runs the host lifecycle and fans out any change.
func (pm *PartyManager) evaluateHost(p *Party, now time.Time) HostTransition {
	tr := p.EvaluateHost(now, pm.HostGrace)
	switch tr {
	case HostClaimed, HostReassigned:
		log.Printf("Party %s host %s to %s", p.ID, tr, p.HostConnectionID)
		pm.broadcastHost(p)
		pm.persist(p, now)
	case HostGraceStarted:
		log.Printf("Party %s host disconnected, waiting %v to see if they return...", p.ID, pm.HostGrace)
		pm.persist(p, now)
	case HostWentDormant:
		log.Printf("Party %s is dormant", p.ID)
		pm.persist(p, now)
	}
	return tr
}

// terminate announces the end of a party, clears its room and forgets it.
func (pm *PartyManager) terminate(p *Party, text string) {
	pm.publish(p.ID, ServerMessagePartyEnded, ServerMessageTextPayload{Text: text})
	for _, m := range p.Members.All() {
		pm.transport.LeaveRoom(p.ID, m.ID)
	}
	pm.parties.Evict(p.ID)
	pm.forget(p.ID)
}

// commit records an accepted event: it refreshes the activity clock and
// queues a snapshot.
func (pm *PartyManager) commit(p *Party, now time.Time) {
	p.LastActiveAt = now
	pm.persist(p, now)
}

func (pm *PartyManager) persist(p *Party, now time.Time) {
	if pm.persister == nil {
		return
	}
	doc, err := EncodeSnapshot(p, now)
	if err != nil {
		log.Printf("Party %s snapshot encode failed: %v", p.ID, err)
		return
	}
	pm.persister.Put(p.ID, doc)
}

func (pm *PartyManager) forget(id PartyID) {
	if pm.persister == nil {
		return
	}
	pm.persister.Delete(id)
}

// ---------------------------------------------------------------------
// Fanout
// ---------------------------------------------------------------------

func (pm *PartyManager) publish(room PartyID, msgType ServerMessageType, payload any) {
	pm.transport.Publish(room, NewServerMessage(msgType, payload))
}

func (pm *PartyManager) send(c ClientID, msgType ServerMessageType, payload any) {
	pm.transport.Send(c, NewServerMessage(msgType, payload))
}

func (pm *PartyManager) info(p *Party, text string) {
	pm.publish(p.ID, ServerMessageInfo, ServerMessageTextPayload{Text: text})
}

// broadcastRoster sends partySize, membersList and voteUpdate.
func (pm *PartyManager) broadcastRoster(p *Party) {
	pm.publish(p.ID, ServerMessagePartySize, ServerMessagePartySizePayload{Size: p.Members.Len()})
	pm.publish(p.ID, ServerMessageMembersList, ServerMessageMembersListPayload{Members: p.MemberInfo()})
	pm.broadcastVotes(p)
}

func (pm *PartyManager) broadcastVotes(p *Party) {
	pm.publish(p.ID, ServerMessageVoteUpdate, p.VoteState())
}

func (pm *PartyManager) broadcastPlayback(p *Party, now time.Time) {
	pm.publish(p.ID, ServerMessagePlaybackUpdate, p.PlaybackState(now))
}

func (pm *PartyManager) broadcastQueue(p *Party) {
	queue := make([]Track, len(p.Queue))
	copy(queue, p.Queue)
	pm.publish(p.ID, ServerMessageQueueUpdated, ServerMessageQueueUpdatedPayload{Queue: queue})
}

// broadcastHost announces the host connection and refreshes the roster
// flags that depend on it.
func (pm *PartyManager) broadcastHost(p *Party) {
	pm.publish(p.ID, ServerMessageHostChanged, ServerMessageHostChangedPayload{HostConnectionID: p.HostConnectionID})
	pm.publish(p.ID, ServerMessageMembersList, ServerMessageMembersListPayload{Members: p.MemberInfo()})
}
