package match_test

import (
	"sync"
	"testing"

	"helpline/backend/internal/match"
	"helpline/backend/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssignSuccess verifies the basic pairing: one free operator, one client.
func TestAssignSuccess(t *testing.T) {
	store := storagetest.NewFake()
	store.AddOperator(100)
	matcher := match.NewService(store)

	assignment, err := matcher.Assign(1)

	require.NoError(t, err)
	assert.Equal(t, match.OutcomeAssigned, assignment.Outcome)
	require.NotNil(t, assignment.Conversation)
	assert.Equal(t, int64(1), assignment.Conversation.ClientID)
	assert.Equal(t, int64(100), assignment.Conversation.OperatorID)
}

// TestAssignTwiceReturnsAlreadyInConversation covers the second /start before /end.
func TestAssignTwiceReturnsAlreadyInConversation(t *testing.T) {
	store := storagetest.NewFake()
	store.AddOperator(100)
	store.AddOperator(200)
	matcher := match.NewService(store)

	first, err := matcher.Assign(1)
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAssigned, first.Outcome)

	second, err := matcher.Assign(1)
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeAlreadyInConversation, second.Outcome)
	require.NotNil(t, second.Conversation, "the existing conversation is returned")
	assert.Equal(t, first.Conversation.OperatorID, second.Conversation.OperatorID)
}

// TestAssignNoOperatorAvailable covers an empty or fully-busy operator pool.
func TestAssignNoOperatorAvailable(t *testing.T) {
	store := storagetest.NewFake()
	matcher := match.NewService(store)

	assignment, err := matcher.Assign(1)

	require.NoError(t, err)
	assert.Equal(t, match.OutcomeNoOperatorAvailable, assignment.Outcome)
	assert.Nil(t, assignment.Conversation)
}

// TestAssignNeverPairsWithSelf ensures an operator asking for help is not
// matched with themself even when they are the only operator.
func TestAssignNeverPairsWithSelf(t *testing.T) {
	store := storagetest.NewFake()
	store.AddOperator(100)
	matcher := match.NewService(store)

	assignment, err := matcher.Assign(100)

	require.NoError(t, err)
	assert.Equal(t, match.OutcomeNoOperatorAvailable, assignment.Outcome)
}

// TestAssignWhileOperating: an identity currently helping someone cannot
// request help for themself.
func TestAssignWhileOperating(t *testing.T) {
	store := storagetest.NewFake()
	store.AddOperator(100)
	matcher := match.NewService(store)

	first, err := matcher.Assign(1)
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAssigned, first.Outcome)

	assignment, err := matcher.Assign(100)
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeClientIsOperating, assignment.Outcome)
}

// TestAssignPrecheckRunsBeforeInsert pins the ordering invariant: for an
// identity that already holds a conversation, the outcome comes from the
// membership pre-check and no insert is ever attempted.
func TestAssignPrecheckRunsBeforeInsert(t *testing.T) {
	store := storagetest.NewFake()
	store.AddOperator(100)
	matcher := match.NewService(store)

	_, err := matcher.Assign(1)
	require.NoError(t, err)
	attemptsAfterFirst := store.AssignAttempts

	second, err := matcher.Assign(1)
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeAlreadyInConversation, second.Outcome)
	assert.Equal(t, attemptsAfterFirst, store.AssignAttempts,
		"a busy client must be rejected by the pre-check, not by a constraint violation")

	operating, err := matcher.Assign(100)
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeClientIsOperating, operating.Outcome)
	assert.Equal(t, attemptsAfterFirst, store.AssignAttempts)
}

// TestConcurrentAssignUniqueness is the core concurrency property: N clients
// racing for M operators (N > M) produce exactly M assignments, the rest get
// no-operator-available, and no operator serves two clients.
func TestConcurrentAssignUniqueness(t *testing.T) {
	const (
		operators = 5
		clients   = 20
	)

	store := storagetest.NewFake()
	for i := 0; i < operators; i++ {
		store.AddOperator(int64(1000 + i))
	}
	matcher := match.NewService(store)

	results := make([]match.Assignment, clients)
	errs := make([]error, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = matcher.Assign(int64(1 + i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "client %d", 1+i)
	}

	assignedOperators := make(map[int64]int64) // operator -> client
	var denied int
	for i, assignment := range results {
		switch assignment.Outcome {
		case match.OutcomeAssigned:
			opID := assignment.Conversation.OperatorID
			if prev, taken := assignedOperators[opID]; taken {
				t.Fatalf("operator %d assigned to both client %d and client %d", opID, prev, int64(1+i))
			}
			assignedOperators[opID] = int64(1 + i)
		case match.OutcomeNoOperatorAvailable:
			denied++
		default:
			t.Fatalf("unexpected outcome %q for client %d", assignment.Outcome, 1+i)
		}
	}

	assert.Equal(t, operators, len(assignedOperators), "every operator should be taken exactly once")
	assert.Equal(t, clients-operators, denied)
}

// TestBusyOperatorNotSelectable: an operator stays invisible to the matcher
// until their client ends the conversation.
func TestBusyOperatorNotSelectable(t *testing.T) {
	store := storagetest.NewFake()
	store.AddOperator(100)
	matcher := match.NewService(store)

	first, err := matcher.Assign(1)
	require.NoError(t, err)
	require.Equal(t, match.OutcomeAssigned, first.Outcome)

	blocked, err := matcher.Assign(2)
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeNoOperatorAvailable, blocked.Outcome)

	ended, err := matcher.End(1)
	require.NoError(t, err)
	require.NotNil(t, ended)

	retry, err := matcher.Assign(2)
	require.NoError(t, err)
	assert.Equal(t, match.OutcomeAssigned, retry.Outcome)
	assert.Equal(t, int64(100), retry.Conversation.OperatorID)
}
