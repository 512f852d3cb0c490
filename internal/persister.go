package internal

import (
	"context"
	"log"
	"time"

	"github.com/JDRadatti/listenparty/internal/store"
)

const (
	persisterCommandBufferSize = 256
	defaultPersistTimeout      = 5 * time.Second
)

// ---------------------------------------------------------------------
// Communication
// ---------------------------------------------------------------------
//
// PartyManager → Persister:
//   The PartyManager queues snapshot writes and deletes through Put and
//   Delete. Neither call blocks; a full buffer drops the command.
//
// Persister → Store:
//   The Persister goroutine applies commands to the Store in the order
//   they were queued. Failures are logged and the in-memory state stays
//   authoritative.
// ---------------------------------------------------------------------

// PersisterCommandType defines the list of commands a Persister can process.
type PersisterCommandType string

const (
	PersisterCommandPut    PersisterCommandType = "put"
	PersisterCommandDelete PersisterCommandType = "delete"
)

// PersisterCommand is a single write sent to a Persister.
type PersisterCommand struct {
	Type    PersisterCommandType
	PartyID PartyID
	Doc     []byte
}

// Persister mirrors party snapshots into a Store from its own goroutine,
// so a slow or failing backend never stalls the PartyManager.
type Persister struct {
	store    store.Store
	commands chan PersisterCommand
	timeout  time.Duration
}

// NewPersister creates a Persister writing to st. The caller should
// start it with Run.
func NewPersister(st store.Store) *Persister {
	return &Persister{
		store:    st,
		commands: make(chan PersisterCommand, persisterCommandBufferSize),
		timeout:  defaultPersistTimeout,
	}
}

// Put queues a snapshot write.
func (ps *Persister) Put(id PartyID, doc []byte) {
	ps.SendCommand(PersisterCommand{Type: PersisterCommandPut, PartyID: id, Doc: doc})
}

// Delete queues a snapshot removal.
func (ps *Persister) Delete(id PartyID) {
	ps.SendCommand(PersisterCommand{Type: PersisterCommandDelete, PartyID: id})
}

// SendCommand safely queues a command for the Persister goroutine.
// If the buffer is full, the command is dropped and logged.
func (ps *Persister) SendCommand(cmd PersisterCommand) {
	select {
	case ps.commands <- cmd:
	default:
		log.Printf("Persister command buffer full, dropping %s for party %s", cmd.Type, cmd.PartyID)
	}
}

// Run applies queued commands until ctx is done, then flushes whatever
// is still buffered.
func (ps *Persister) Run(ctx context.Context) {
	for {
		select {
		case cmd := <-ps.commands:
			ps.handleCommand(ctx, cmd)
		case <-ctx.Done():
			ps.drain()
			return
		}
	}
}

func (ps *Persister) drain() {
	for {
		select {
		case cmd := <-ps.commands:
			ps.handleCommand(context.Background(), cmd)
		default:
			return
		}
	}
}

func (ps *Persister) handleCommand(ctx context.Context, cmd PersisterCommand) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ps.timeout)
	defer cancel()

	var err error
	switch cmd.Type {
	case PersisterCommandPut:
		err = ps.store.Put(ctx, string(cmd.PartyID), cmd.Doc)
	case PersisterCommandDelete:
		err = ps.store.Delete(ctx, string(cmd.PartyID))
	default:
		log.Printf("Unknown persister command %s", cmd.Type)
		return
	}
	if err != nil {
		log.Printf("Persister %s for party %s failed: %v", cmd.Type, cmd.PartyID, err)
	}
}
