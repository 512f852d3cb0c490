package internal

import (
	"encoding/json"
	"fmt"
	"log"
)

type ServerMessageType string
type ServerErrorCode string
type ClientMessageType string

const (
	ServerMessageConnected         ServerMessageType = "connected"
	ServerMessagePartyState        ServerMessageType = "partyState"
	ServerMessagePartySize         ServerMessageType = "partySize"
	ServerMessageMembersList       ServerMessageType = "membersList"
	ServerMessageVoteUpdate        ServerMessageType = "voteUpdate"
	ServerMessageThemeUpdate       ServerMessageType = "themeUpdate"
	ServerMessageSettingsUpdate    ServerMessageType = "settingsUpdate"
	ServerMessageQueueUpdated      ServerMessageType = "queueUpdated"
	ServerMessagePlaybackUpdate    ServerMessageType = "playbackUpdate"
	ServerMessageSync              ServerMessageType = "sync"
	ServerMessageHostChanged       ServerMessageType = "hostChanged"
	ServerMessageInfo              ServerMessageType = "info"
	ServerMessageError             ServerMessageType = "errorNotice"
	ServerMessageKicked            ServerMessageType = "kicked"
	ServerMessagePartyEnded        ServerMessageType = "partyEnded"
	ServerMessageReaction          ServerMessageType = "reaction"
	ServerMessageChatMessage       ServerMessageType = "chatMessage"
	ServerMessagePublicPartiesList ServerMessageType = "publicPartiesList"
)

const (
	ErrorCodeInvalidRequest        ServerErrorCode = "invalidRequest"
	ErrorCodePartyNotFound         ServerErrorCode = "partyNotFound"
	ErrorCodeNotPartyHost          ServerErrorCode = "notPartyHost"
	ErrorCodeGuestQueueingDisabled ServerErrorCode = "guestQueueingDisabled"
)

const (
	ClientMessageCreateParty      ClientMessageType = "createParty"
	ClientMessageJoinParty        ClientMessageType = "joinParty"
	ClientMessageReconnectAsHost  ClientMessageType = "reconnectAsHost"
	ClientMessageUpdateSettings   ClientMessageType = "updateSettings"
	ClientMessageKickMember       ClientMessageType = "kickMember"
	ClientMessageChangeTheme      ClientMessageType = "changeTheme"
	ClientMessageChangeIndex      ClientMessageType = "changeIndex"
	ClientMessageAddTrack         ClientMessageType = "addTrack"
	ClientMessageRemoveTrack      ClientMessageType = "removeTrack"
	ClientMessageVoteSkip         ClientMessageType = "voteSkip"
	ClientMessagePlay             ClientMessageType = "play"
	ClientMessagePause            ClientMessageType = "pause"
	ClientMessageSeek             ClientMessageType = "seek"
	ClientMessageTrackEnded       ClientMessageType = "trackEnded"
	ClientMessageEndParty         ClientMessageType = "endParty"
	ClientMessageSendReaction     ClientMessageType = "sendReaction"
	ClientMessageSendChatMessage  ClientMessageType = "sendChatMessage"
	ClientMessageGetPublicParties ClientMessageType = "getPublicParties"
)

// ---------------------------------------------------------------------
// Client Messages
// ---------------------------------------------------------------------

type ClientMessage struct {
	Type    ClientMessageType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

// ClientProfile is the caller-supplied description of a participant.
type ClientProfile struct {
	IdentityID string `json:"identityId"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar"`
}

type ClientMessageCreatePartyPayload struct {
	ClientProfile
	Name     string    `json:"name"`
	IsPublic bool      `json:"isPublic"`
	Mode     PartyMode `json:"mode"`
}

type ClientMessageJoinPartyPayload struct {
	ClientProfile
	PartyID PartyID `json:"partyId"`
}

type ClientMessageReconnectAsHostPayload struct {
	ClientProfile
	PartyID PartyID `json:"partyId"`
}

type ClientMessageUpdateSettingsPayload struct {
	PartyID  PartyID       `json:"partyId"`
	Settings SettingsPatch `json:"settings"`
}

type ClientMessageKickMemberPayload struct {
	PartyID  PartyID  `json:"partyId"`
	TargetID ClientID `json:"targetId"`
}

type ClientMessageChangeThemePayload struct {
	PartyID    PartyID `json:"partyId"`
	ThemeIndex int     `json:"themeIndex"`
}

type ClientMessageChangeIndexPayload struct {
	PartyID  PartyID `json:"partyId"`
	NewIndex int     `json:"newIndex"`
}

type ClientMessageAddTrackPayload struct {
	PartyID PartyID    `json:"partyId"`
	Track   TrackInput `json:"track"`
}

type ClientMessageRemoveTrackPayload struct {
	PartyID PartyID `json:"partyId"`
	TrackID string  `json:"trackId"`
}

// ClientMessagePartyPayload is shared by every event that only names a party:
// voteSkip, play, pause, trackEnded and endParty.
type ClientMessagePartyPayload struct {
	PartyID PartyID `json:"partyId"`
}

// ClientMessageSeekPayload carries a position in seconds from the start
// of the current track.
type ClientMessageSeekPayload struct {
	PartyID  PartyID `json:"partyId"`
	Position float64 `json:"position"`
}

type ClientMessageSendReactionPayload struct {
	PartyID PartyID `json:"partyId"`
	Emoji   string  `json:"emoji"`
}

type ClientMessageSendChatMessagePayload struct {
	PartyID  PartyID `json:"partyId"`
	Message  string  `json:"message"`
	Username string  `json:"username"`
}

type ClientMessageGetPublicPartiesPayload struct{}

// ---------------------------------------------------------------------
// Server Messages
// ---------------------------------------------------------------------

type ServerMessage struct {
	Type    ServerMessageType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

type ServerMessageConnectedPayload struct {
	ConnectionID ClientID `json:"connectionId"`
	ServerTime   int64    `json:"serverTime"`
}

type ServerMessagePartySizePayload struct {
	Size int `json:"size"`
}

type ServerMessageMembersListPayload struct {
	Members []MemberInfo `json:"members"`
}

type ServerMessageVoteUpdatePayload struct {
	Votes    int  `json:"votes"`
	Required int  `json:"required"`
	Enabled  bool `json:"enabled"`
}

type ServerMessageThemeUpdatePayload struct {
	ThemeIndex int `json:"themeIndex"`
}

type ServerMessageSettingsUpdatePayload struct {
	Settings Settings `json:"settings"`
}

type ServerMessageQueueUpdatedPayload struct {
	Queue []Track `json:"queue"`
}

type ServerMessagePlaybackUpdatePayload struct {
	IsPlaying    bool  `json:"isPlaying"`
	StartedAt    int64 `json:"startedAt"`
	ElapsedMs    int64 `json:"elapsedMs"`
	CurrentIndex int   `json:"currentIndex"`
	ServerTime   int64 `json:"serverTime"`
}

type ServerMessageSyncPayload struct {
	ServerTime   int64 `json:"serverTime"`
	StartedAt    int64 `json:"startedAt"`
	CurrentIndex int   `json:"currentIndex"`
}

type ServerMessageHostChangedPayload struct {
	HostConnectionID ClientID `json:"hostConnectionId"`
}

type ServerMessageTextPayload struct {
	Text string `json:"text"`
}

type ServerMessageErrorPayload struct {
	Code        ServerErrorCode   `json:"code"`
	Text        string            `json:"text"`
	RequestType ClientMessageType `json:"requestType,omitempty"`
}

type ServerMessageReactionPayload struct {
	Emoji    string   `json:"emoji"`
	SenderID ClientID `json:"senderId"`
}

type ServerMessageChatMessagePayload struct {
	ID        string   `json:"id"`
	SenderID  ClientID `json:"senderId"`
	Username  string   `json:"username"`
	Text      string   `json:"text"`
	Timestamp int64    `json:"timestamp"`
}

type ServerMessagePublicPartiesListPayload struct {
	Parties []PublicPartyInfo `json:"parties"`
}

// NewServerMessage marshals payload into a ServerMessage envelope.
// Marshal failures are logged and produce a message with a null payload.
func NewServerMessage(msgType ServerMessageType, payload any) ServerMessage {
	bytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("NewServerMessage: failed to marshal payload (msgType=%s): %v", msgType, err)
		bytes = []byte("null")
	}
	return ServerMessage{Type: msgType, Payload: bytes}
}

// DecodePayload decodes a raw message payload into T. An absent payload
// decodes as an empty object.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}

// UnmarshalClientMessage decodes the ClientMessage payload
// into the appropriate typed struct depending on msg.Type.
func UnmarshalClientMessage(msg ClientMessage) (any, error) {
	switch msg.Type {
	case ClientMessageCreateParty:
		return DecodePayload[ClientMessageCreatePartyPayload](msg.Payload)
	case ClientMessageJoinParty:
		return DecodePayload[ClientMessageJoinPartyPayload](msg.Payload)
	case ClientMessageReconnectAsHost:
		return DecodePayload[ClientMessageReconnectAsHostPayload](msg.Payload)
	case ClientMessageUpdateSettings:
		return DecodePayload[ClientMessageUpdateSettingsPayload](msg.Payload)
	case ClientMessageKickMember:
		return DecodePayload[ClientMessageKickMemberPayload](msg.Payload)
	case ClientMessageChangeTheme:
		return DecodePayload[ClientMessageChangeThemePayload](msg.Payload)
	case ClientMessageChangeIndex:
		return DecodePayload[ClientMessageChangeIndexPayload](msg.Payload)
	case ClientMessageAddTrack:
		return DecodePayload[ClientMessageAddTrackPayload](msg.Payload)
	case ClientMessageRemoveTrack:
		return DecodePayload[ClientMessageRemoveTrackPayload](msg.Payload)
	case ClientMessageVoteSkip, ClientMessagePlay, ClientMessagePause,
		ClientMessageTrackEnded, ClientMessageEndParty:
		return DecodePayload[ClientMessagePartyPayload](msg.Payload)
	case ClientMessageSeek:
		return DecodePayload[ClientMessageSeekPayload](msg.Payload)
	case ClientMessageSendReaction:
		return DecodePayload[ClientMessageSendReactionPayload](msg.Payload)
	case ClientMessageSendChatMessage:
		return DecodePayload[ClientMessageSendChatMessagePayload](msg.Payload)
	case ClientMessageGetPublicParties:
		return DecodePayload[ClientMessageGetPublicPartiesPayload](msg.Payload)
	default:
		// Unknown or invalid message type
		return nil, fmt.Errorf("unknown client message type: %s", msg.Type)
	}
}
