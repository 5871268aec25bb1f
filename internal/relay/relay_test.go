package relay_test

import (
	"errors"
	"testing"

	"helpline/backend/internal/match"
	"helpline/backend/internal/relay"
	"helpline/backend/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDeliverer is a testify double for the platform send.
type MockDeliverer struct {
	mock.Mock
}

func (d *MockDeliverer) Deliver(chatID int64, text string, replyToMessageID int) (int, error) {
	args := d.Called(chatID, text, replyToMessageID)
	return args.Int(0), args.Error(1)
}

const (
	clientChat   = int64(1)
	operatorChat = int64(100)
)

// pairedStore returns a fake store with an active client/operator pairing.
func pairedStore(t *testing.T) *storagetest.Fake {
	t.Helper()
	store := storagetest.NewFake()
	store.AddOperator(operatorChat)
	assignment, err := match.NewService(store).Assign(clientChat)
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAssigned, assignment.Outcome)
	return store
}

// TestRelayWithoutConversation: nothing is consulted or delivered when the
// sender has no active counterpart.
func TestRelayWithoutConversation(t *testing.T) {
	store := storagetest.NewFake()
	deliverer := new(MockDeliverer)
	svc := relay.NewService(store, deliverer)

	result, err := svc.Relay(clientChat, 5, "hello", nil)

	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeNoActiveConversation, result.Outcome)
	deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

// TestRelayDeliversAndRecords: a plain message reaches the counterpart and
// both ledger directions are written.
func TestRelayDeliversAndRecords(t *testing.T) {
	store := pairedStore(t)
	deliverer := new(MockDeliverer)
	deliverer.On("Deliver", operatorChat, "hello", 0).Return(9, nil).Once()
	svc := relay.NewService(store, deliverer)

	result, err := svc.Relay(clientChat, 5, "hello", nil)

	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeDelivered, result.Outcome)
	assert.Equal(t, operatorChat, result.ReceiverChatID)
	assert.Equal(t, 9, result.ReceiverMessageID)
	assert.Equal(t, 2, store.RelayRecordCount(), "one row per direction")
	deliverer.AssertExpectations(t)
}

// TestRelayReplyRoundTrip is the threading property: client sends message 5,
// delivered as 9; the operator replying to 9 produces a reply threaded onto 5
// back in the client's chat.
func TestRelayReplyRoundTrip(t *testing.T) {
	store := pairedStore(t)
	deliverer := new(MockDeliverer)
	deliverer.On("Deliver", operatorChat, "help me", 0).Return(9, nil).Once()
	deliverer.On("Deliver", clientChat, "of course", 5).Return(6, nil).Once()
	svc := relay.NewService(store, deliverer)

	_, err := svc.Relay(clientChat, 5, "help me", nil)
	require.NoError(t, err)

	repliedTo := 9
	result, err := svc.Relay(operatorChat, 12, "of course", &repliedTo)

	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeDelivered, result.Outcome)
	assert.Equal(t, clientChat, result.ReceiverChatID)
	deliverer.AssertExpectations(t)
	assert.Equal(t, 4, store.RelayRecordCount())
}

// TestRelayReplyToOwnMessage: replying to one's own earlier message resolves
// through the symmetric ledger row.
func TestRelayReplyToOwnMessage(t *testing.T) {
	store := pairedStore(t)
	deliverer := new(MockDeliverer)
	deliverer.On("Deliver", operatorChat, "first", 0).Return(9, nil).Once()
	deliverer.On("Deliver", operatorChat, "correction", 9).Return(10, nil).Once()
	svc := relay.NewService(store, deliverer)

	_, err := svc.Relay(clientChat, 5, "first", nil)
	require.NoError(t, err)

	repliedTo := 5
	result, err := svc.Relay(clientChat, 7, "correction", &repliedTo)

	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeDelivered, result.Outcome)
	deliverer.AssertExpectations(t)
}

// TestRelayUnresolvedReplyTarget: replying to a message that was never
// relayed is its own outcome, independent of conversation state.
func TestRelayUnresolvedReplyTarget(t *testing.T) {
	store := pairedStore(t)
	deliverer := new(MockDeliverer)
	svc := relay.NewService(store, deliverer)

	repliedTo := 777
	result, err := svc.Relay(clientChat, 5, "hello?", &repliedTo)

	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeReplyTargetUnresolved, result.Outcome)
	deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

// TestLedgerOutlivesConversation pins the accepted simplification: ledger
// rows are not pruned on end, but step one (counterpart resolution) hides
// them from a sender who no longer has a conversation.
func TestLedgerOutlivesConversation(t *testing.T) {
	store := pairedStore(t)
	deliverer := new(MockDeliverer)
	deliverer.On("Deliver", operatorChat, "hello", 0).Return(9, nil).Once()
	svc := relay.NewService(store, deliverer)

	_, err := svc.Relay(clientChat, 5, "hello", nil)
	require.NoError(t, err)

	ended, err := match.NewService(store).End(clientChat)
	require.NoError(t, err)
	require.NotNil(t, ended)

	assert.Equal(t, 2, store.RelayRecordCount(), "records survive the end")

	repliedTo := 9
	result, err := svc.Relay(operatorChat, 12, "too late", &repliedTo)
	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeNoActiveConversation, result.Outcome,
		"the counterpart check fires before the ledger is consulted")
}

// TestFailedDeliveryLeavesNoRecord: a rejected send must not leave a ledger
// row pointing at a message that does not exist.
func TestFailedDeliveryLeavesNoRecord(t *testing.T) {
	store := pairedStore(t)
	deliverer := new(MockDeliverer)
	deliverer.On("Deliver", operatorChat, "hello", 0).Return(0, errors.New("blocked by user")).Once()
	svc := relay.NewService(store, deliverer)

	result, err := svc.Relay(clientChat, 5, "hello", nil)

	require.NoError(t, err)
	assert.Equal(t, relay.OutcomeDeliveryFailed, result.Outcome)
	assert.Zero(t, store.RelayRecordCount())
	deliverer.AssertExpectations(t)
}
