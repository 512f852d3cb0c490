package internal

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	maxMessageSize = 16 * 1024
)

// ClientID identifies one websocket connection. It is only valid for the
// lifetime of that connection.
type ClientID string

// NewClientID returns a fresh connection id.
func NewClientID() ClientID {
	return ClientID(uuid.New().String())
}

type Client struct {
	ID   ClientID
	conn *websocket.Conn
	send chan ServerMessage
	pm   *PartyManager
	hub  *Hub
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// ServeWs is the main entrypoint of a client. It creates the Client object,
// registers it with the hub and starts the read and write pumps.
func ServeWs(pm *PartyManager, hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	c := &Client{
		ID:   NewClientID(),
		conn: conn,
		send: make(chan ServerMessage, sendBufferSize),
		pm:   pm,
		hub:  hub,
	}
	hub.Register(c)

	go c.writePump()
	go c.readPump()

	hub.Send(c.ID, NewServerMessage(ServerMessageConnected, ServerMessageConnectedPayload{
		ConnectionID: c.ID,
		ServerTime:   pm.now().UnixMilli(),
	}))
	log.Printf("Client %s connected from %s", c.ID, r.RemoteAddr)
}

// readPump pumps messages from the websocket connection to the PartyManager.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.pm.SendCommand(PartyManagerCommand{
			Type:   PartyManagerCommandDisconnect,
			Client: c.ID,
		})
		c.hub.Unregister(c.ID)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("Client %s connection closed: %v", c.ID, err)
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendError(ErrorCodeInvalidRequest, "Malformed client message.", "")
			continue
		}

		payload, err := UnmarshalClientMessage(msg)
		if err != nil {
			c.SendError(ErrorCodeInvalidRequest, "Malformed client payload.", msg.Type)
			continue
		}

		c.pm.SendCommand(PartyManagerCommand{
			Type:    PartyManagerCommandClientMessage,
			Client:  c.ID,
			Payload: PartyManagerClientMessagePayload{Type: msg.Type, Body: payload},
		})
	}
}

// writePump pumps messages from the PartyManager to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	defer c.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("Client %s write err: %v", c.ID, err)
			return
		}
	}
}

// SendError sends an errorNotice to this client only.
func (c *Client) SendError(code ServerErrorCode, text string, reqType ClientMessageType) {
	c.hub.Send(c.ID, NewServerMessage(ServerMessageError, ServerMessageErrorPayload{
		Code:        code,
		Text:        text,
		RequestType: reqType,
	}))
}

func (c *Client) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed"))
	c.conn.Close()
}
