package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		body    string
		actions []string
	}{
		{
			name:    "sentinel with two actions",
			raw:     "Answer body.\n\n次にするアクション:\nAction one\nAction two",
			body:    "Answer body.",
			actions: []string{"Action one", "Action two"},
		},
		{
			name: "no sentinel",
			raw:  "  Just an answer.\n",
			body: "Just an answer.",
		},
		{
			name:    "extra actions are dropped",
			raw:     "Body\n次にするアクション:\n one \n\n two\nthree",
			body:    "Body",
			actions: []string{"one", "two"},
		},
		{
			name: "sentinel with nothing after",
			raw:  "Body\n次にするアクション:\n\n",
			body: "Body",
		},
		{
			name:    "only the first sentinel splits",
			raw:     "Body\n次にするアクション:\n次にするアクション: again\nnext",
			body:    "Body",
			actions: []string{"次にするアクション: again", "next"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseResponse(tt.raw)
			assert.Equal(t, tt.body, r.Body)
			assert.Equal(t, tt.actions, r.Actions)
		})
	}
}

func TestComposeUserTurn(t *testing.T) {
	assert.Equal(t, "Q", ComposeUserTurn("Q", false))
	turn := ComposeUserTurn("Q", true)
	assert.Contains(t, turn, ActionsSentinel)
	assert.Equal(t, "Q", turn[:1])
}
