package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-arena/server/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestAgentLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	agent, err := store.CreateAgent(ctx, "quizbot", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "quizbot", agent.Nickname)
	assert.Equal(t, 1, agent.Level)
	assert.Zero(t, agent.Score)

	_, err = store.CreateAgent(ctx, "quizbot", "key-2")
	assert.ErrorIs(t, err, storage.ErrConflict, "duplicate nickname must surface as a conflict")
	_, err = store.CreateAgent(ctx, "other", "key-1")
	assert.ErrorIs(t, err, storage.ErrConflict, "duplicate api key must surface as a conflict")

	byKey, err := store.GetAgentByAPIKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, byKey.ID)

	_, err = store.GetAgentByAPIKey(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetAgentByID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.UpdateAgentConnection(ctx, agent.ID, true))
	require.NoError(t, store.UpdateAgentScore(ctx, agent.ID, 10))
	require.NoError(t, store.UpdateAgentScore(ctx, agent.ID, -5))
	require.NoError(t, store.UpdateAgentStats(ctx, agent.ID, storage.StatDelta{Wins: 1, QuestionsAsked: 2}))

	loaded, err := store.GetAgentByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsConnected)
	assert.False(t, loaded.LastHeartbeat.IsZero(), "connecting refreshes the heartbeat")
	assert.Equal(t, 5, loaded.Score)
	assert.Equal(t, 1, loaded.Wins)
	assert.Equal(t, 2, loaded.QuestionsAsked)

	connected, err := store.ConnectedAgents(ctx)
	require.NoError(t, err)
	require.Len(t, connected, 1)

	require.NoError(t, store.UpdateAgentConnection(ctx, agent.ID, false))
	connected, err = store.ConnectedAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, connected)

	assert.ErrorIs(t, store.UpdateAgentHeartbeat(ctx, 999), storage.ErrNotFound)
}

func TestTopAgentsOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, fixture := range []struct {
		nickname string
		score    int
	}{
		{"bronze", 5},
		{"gold", 50},
		{"silver", 20},
	} {
		agent, err := store.CreateAgent(ctx, fixture.nickname, "key-"+fixture.nickname)
		require.NoError(t, err)
		require.NoError(t, store.UpdateAgentScore(ctx, agent.ID, fixture.score))
	}

	top, err := store.TopAgents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "gold", top[0].Nickname)
	assert.Equal(t, "silver", top[1].Nickname)
}

func TestQuestionPersistence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	agent, err := store.CreateAgent(ctx, "maker", "key-maker")
	require.NoError(t, err)

	attributed, err := store.CreateQuestion(ctx, storage.NewQuestion{
		Text:           "Penguins have knees",
		CreatorAgentID: &agent.ID,
		RoundNumber:    1,
	})
	require.NoError(t, err)

	orphan, err := store.CreateQuestion(ctx, storage.NewQuestion{
		Text:        "The moon is slowly escaping",
		RoundNumber: 2,
	})
	require.NoError(t, err)
	assert.NotEqual(t, attributed, orphan)

	require.NoError(t, store.UpdateQuestionVotes(ctx, orphan, 5, 1))
	assert.ErrorIs(t, store.UpdateQuestionVotes(ctx, 999, 1, 0), storage.ErrNotFound)

	top, err := store.TopQuestions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, orphan, top[0].ID, "highest net votes first")
	assert.Equal(t, 5, top[0].Likes)
	assert.Nil(t, top[0].CreatorAgentID)
	require.NotNil(t, top[1].CreatorAgentID)
	assert.Equal(t, agent.ID, *top[1].CreatorAgentID)
}

func TestRoundPersistence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestRoundNumber(ctx)
	require.NoError(t, err)
	assert.Zero(t, latest, "empty table reports round zero")

	agent, err := store.CreateAgent(ctx, "maker", "key-maker")
	require.NoError(t, err)
	questionID, err := store.CreateQuestion(ctx, storage.NewQuestion{
		Text:           "Sharks predate trees",
		CreatorAgentID: &agent.ID,
		RoundNumber:    1,
	})
	require.NoError(t, err)

	for round := 1; round <= 3; round++ {
		require.NoError(t, store.CreateRound(ctx, storage.NewRound{
			RoundNumber:     round,
			QuestionID:      questionID,
			MakerAgentID:    &agent.ID,
			OCount:          round,
			XCount:          round + 1,
			Outcome:         "O",
			DurationSeconds: 40,
		}))
	}

	latest, err = store.LatestRoundNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	history, err := store.RoundHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 3, history[0].RoundNumber, "newest round first")
	assert.Equal(t, 2, history[1].RoundNumber)
	require.NotNil(t, history[0].MakerAgentID)
	assert.Equal(t, agent.ID, *history[0].MakerAgentID)
}

func TestVoteUniquenessPerVoter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	questionID, err := store.CreateQuestion(ctx, storage.NewQuestion{
		Text:        "Hot water freezes faster",
		RoundNumber: 1,
	})
	require.NoError(t, err)

	created, err := store.CreateVote(ctx, storage.Vote{
		QuestionID: questionID,
		VoterKey:   "voter-a",
		Type:       storage.VoteThumbsUp,
	})
	require.NoError(t, err)
	assert.True(t, created)

	// Same voter, same question: silently rejected.
	created, err = store.CreateVote(ctx, storage.Vote{
		QuestionID: questionID,
		VoterKey:   "voter-a",
		Type:       storage.VoteThumbsDown,
	})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = store.CreateVote(ctx, storage.Vote{
		QuestionID: questionID,
		VoterKey:   "voter-b",
		Type:       storage.VoteThumbsDown,
	})
	require.NoError(t, err)
	assert.True(t, created)

	counts, err := store.VoteCounts(ctx, questionID)
	require.NoError(t, err)
	assert.Equal(t, storage.VoteCounts{Likes: 1, Dislikes: 1}, counts)

	empty, err := store.VoteCounts(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, empty.Likes)
	assert.Zero(t, empty.Dislikes)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.CreateAgent(context.Background(), "survivor", "key-s")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening replays nothing and keeps existing rows.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	agent, err := store.GetAgentByAPIKey(context.Background(), "key-s")
	require.NoError(t, err)
	assert.Equal(t, "survivor", agent.Nickname)
}
