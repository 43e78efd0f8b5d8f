package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveChainTwoLevels(t *testing.T) {
	tree := BuildTree(stamp(
		user("u1", "", "u1 text"),
		answer("a1", "u1", "", "a1 text"),
		user("u2", "a1", "u2 text"),
		answer("a2", "u2", "a1", "a2 text"),
	))

	chain := ResolveChain(tree, "a2")

	require.Len(t, chain.Exchanges, 2)
	assert.Equal(t, "u1", chain.Exchanges[0].Question.MessageID)
	assert.Equal(t, "a1", chain.Exchanges[0].Answer.MessageID)
	assert.Equal(t, "a2", chain.Exchanges[1].Answer.MessageID)
	assert.Equal(t, []Turn{
		{Role: TurnRoleUser, Text: "u1 text"},
		{Role: TurnRoleModel, Text: "a1 text"},
		{Role: TurnRoleUser, Text: "u2 text"},
		{Role: TurnRoleModel, Text: "a2 text"},
	}, chain.Turns())
	assert.Equal(t, []string{"a1", "a2"}, chain.IDs.Slice())
}

func TestResolveChainOldestFirstEndsAtTarget(t *testing.T) {
	tree := BuildTree(branching())

	for _, target := range []string{"a1", "a2", "a3", "a9"} {
		chain := ResolveChain(tree, target)
		require.NotEmpty(t, chain.Exchanges, target)
		last := chain.Exchanges[len(chain.Exchanges)-1]
		assert.Equal(t, target, last.Answer.MessageID)
		for i := 1; i < len(chain.Exchanges); i++ {
			assert.True(t, chain.Exchanges[i-1].Answer.CreatedAt.Before(chain.Exchanges[i].Answer.CreatedAt))
		}
	}

	chain := ResolveChain(tree, "a3")
	assert.Equal(t, []string{"a1", "a2", "a3"}, chain.IDs.Slice())
	assert.False(t, chain.Contains("a9"))
	assert.True(t, chain.Contains("a1"))
}

func TestResolveChainUnknownTarget(t *testing.T) {
	tree := BuildTree(branching())

	chain := ResolveChain(tree, "nope")
	assert.Empty(t, chain.Exchanges)
	assert.Empty(t, chain.Turns())
	assert.True(t, chain.Contains("nope"))
	assert.False(t, chain.Contains("a1"))

	// A question id is not an answer.
	assert.Empty(t, ResolveChain(tree, "u1").Exchanges)
}

func TestResolveChainSkipsUnresolvedQuestion(t *testing.T) {
	tree := BuildTree(stamp(
		answer("a1", "gone", "", "orphan answer"),
		user("u2", "a1", "follow"),
		answer("a2", "u2", "a1", "follow answer"),
	))

	chain := ResolveChain(tree, "a2")
	require.Len(t, chain.Exchanges, 1)
	assert.Equal(t, "u2", chain.Exchanges[0].Question.MessageID)
	assert.True(t, chain.Contains("a1"))
}

func TestResolveChainParentCycle(t *testing.T) {
	tree := BuildTree(stamp(
		user("u1", "a2", "Q1"),
		answer("a1", "u1", "a2", "A1"),
		user("u2", "a1", "Q2"),
		answer("a2", "u2", "a1", "A2"),
	))

	chain := ResolveChain(tree, "a2")
	assert.Len(t, chain.Exchanges, 2)
}
