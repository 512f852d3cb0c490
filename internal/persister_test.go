package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JDRadatti/listenparty/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a testify mock of store.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Put(ctx context.Context, id string, doc []byte) error {
	args := m.Called(ctx, id, doc)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) ListAll(ctx context.Context) ([][]byte, error) {
	args := m.Called(ctx)
	if docs := args.Get(0); docs != nil {
		return docs.([][]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

var _ store.Store = (*MockStore)(nil)

// runPersister runs ps until every queued command has been applied.
func runPersister(ps *Persister) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ps.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}

func TestPersisterAppliesInOrder(t *testing.T) {
	st := new(MockStore)
	var order []string
	st.On("Put", mock.Anything, "ABC123", []byte(`{"v":1}`)).Return(nil).Run(func(mock.Arguments) { order = append(order, "put1") }).Once()
	st.On("Put", mock.Anything, "ABC123", []byte(`{"v":2}`)).Return(nil).Run(func(mock.Arguments) { order = append(order, "put2") }).Once()
	st.On("Delete", mock.Anything, "ABC123").Return(nil).Run(func(mock.Arguments) { order = append(order, "delete") }).Once()

	ps := NewPersister(st)
	ps.Put("ABC123", []byte(`{"v":1}`))
	ps.Put("ABC123", []byte(`{"v":2}`))
	ps.Delete("ABC123")
	runPersister(ps)

	st.AssertExpectations(t)
	assert.Equal(t, []string{"put1", "put2", "delete"}, order)
}

func TestPersisterSurvivesStoreErrors(t *testing.T) {
	st := new(MockStore)
	st.On("Put", mock.Anything, "AAA111", mock.Anything).Return(errors.New("disk full")).Once()
	st.On("Put", mock.Anything, "BBB222", mock.Anything).Return(nil).Once()

	ps := NewPersister(st)
	ps.Put("AAA111", []byte(`{}`))
	ps.Put("BBB222", []byte(`{}`))
	runPersister(ps)

	st.AssertExpectations(t)
}

func TestPersisterDropsWhenFull(t *testing.T) {
	ps := NewPersister(new(MockStore))
	for i := 0; i < persisterCommandBufferSize+10; i++ {
		ps.Put("ABC123", []byte(`{}`))
	}
	assert.Len(t, ps.commands, persisterCommandBufferSize)
}

func TestPartyManagerPersistsMutations(t *testing.T) {
	st := new(MockStore)
	st.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("Delete", mock.Anything, mock.Anything).Return(nil)

	ps := NewPersister(st)
	pm, _, _ := newTestManager(t)
	pm.persister = ps

	p := setupParty(t, pm, 1)
	addTracks(t, pm, p, 1)
	require.NoError(t, pm.endParty(hostConn, party(p.ID)))
	runPersister(ps)

	// create, join, addTrack
	st.AssertNumberOfCalls(t, "Put", 3)
	st.AssertCalled(t, "Delete", mock.Anything, string(p.ID))
}

func TestRelaysAreNotPersisted(t *testing.T) {
	st := new(MockStore)
	st.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ps := NewPersister(st)
	pm, _, _ := newTestManager(t)
	pm.persister = ps

	p := setupParty(t, pm, 0)
	require.NoError(t, pm.sendReaction(hostConn, ClientMessageSendReactionPayload{PartyID: p.ID, Emoji: "🎉"}))
	require.NoError(t, pm.sendChatMessage(hostConn, ClientMessageSendChatMessagePayload{PartyID: p.ID, Message: "hi"}))
	runPersister(ps)

	st.AssertNumberOfCalls(t, "Put", 1)
}

func TestRestore(t *testing.T) {
	src, _, clock := newTestManager(t)
	p := setupParty(t, src, 2)
	addTracks(t, src, p, 2)
	require.NoError(t, src.play(hostConn, party(p.ID)))
	clock.Advance(30 * time.Second)
	doc, err := EncodeSnapshot(p, clock.Now())
	require.NoError(t, err)

	st := new(MockStore)
	st.On("ListAll", mock.Anything).Return([][]byte{doc, []byte("not json")}, nil)

	pm, _, clock2 := newTestManager(t)
	clock2.t = clock.Now().Add(time.Hour)
	n, err := pm.Restore(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored, ok := pm.parties.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, HostStateDormant, restored.HostState())
	assert.Equal(t, 0, restored.Members.Len())
	assert.Empty(t, restored.VotesToSkip)
	assert.False(t, restored.IsPlaying)
	assert.Equal(t, 30*time.Second, restored.Elapsed)
	assert.Len(t, restored.Queue, 2)

	// the original host reclaims and playback resumes where it stopped
	require.NoError(t, pm.joinParty("c-new", ClientMessageJoinPartyPayload{
		ClientProfile: ClientProfile{IdentityID: "id-host"},
		PartyID:       p.ID,
	}))
	assert.Equal(t, ClientID("c-new"), restored.HostConnectionID)
	require.NoError(t, pm.play("c-new", party(p.ID)))
	assert.Equal(t, 30*time.Second, restored.Position(clock2.Now()))
}

func TestRestoredPartyReclaimedAfterGuestClaim(t *testing.T) {
	src, _, clock := newTestManager(t)
	p := setupParty(t, src, 0)
	doc, err := EncodeSnapshot(p, clock.Now())
	require.NoError(t, err)

	st := new(MockStore)
	st.On("ListAll", mock.Anything).Return([][]byte{doc}, nil)

	pm, tr, clock2 := newTestManager(t)
	_, err = pm.Restore(context.Background(), st)
	require.NoError(t, err)
	restored, ok := pm.parties.Get(p.ID)
	require.True(t, ok)

	// a guest arrives first and is handed the host connection on the sweep
	require.NoError(t, pm.joinParty("c-guest", ClientMessageJoinPartyPayload{
		ClientProfile: ClientProfile{IdentityID: "id-guest"},
		PartyID:       p.ID,
	}))
	pm.sweep(clock2.Now())
	assert.Equal(t, ClientID("c-guest"), restored.HostConnectionID)
	assert.Equal(t, "id-host", restored.HostIdentityID)

	require.NoError(t, pm.joinParty("c-back", ClientMessageJoinPartyPayload{
		ClientProfile: ClientProfile{IdentityID: "id-host"},
		PartyID:       p.ID,
	}))
	assert.Equal(t, ClientID("c-back"), restored.HostConnectionID)
	assert.True(t, restored.IsHost("c-back"))
	assert.False(t, restored.IsHost("c-guest"))

	changed := decode[ServerMessageHostChangedPayload](t, lastOf(t, tr.publishedOf(p.ID, ServerMessageHostChanged)))
	assert.Equal(t, ClientID("c-back"), changed.HostConnectionID)
}

func TestRestoreListError(t *testing.T) {
	st := new(MockStore)
	st.On("ListAll", mock.Anything).Return(nil, errors.New("connection refused"))

	pm, _, _ := newTestManager(t)
	_, err := pm.Restore(context.Background(), st)
	assert.Error(t, err)
	assert.Equal(t, 0, pm.parties.Len())
}
