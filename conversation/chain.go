package conversation

import "branchchat/model"

type TurnRole string

const (
	TurnRoleUser  TurnRole = "user"
	TurnRoleModel TurnRole = "model"
)

// Turn is one entry of the context replayed to the model.
type Turn struct {
	Role TurnRole `json:"role"`
	Text string   `json:"text"`
}

// Exchange is a question with the answer it produced.
type Exchange struct {
	Question *model.Message
	Answer   *model.Message
}

// Chain is the thread of answers from a root down to a target answer.
type Chain struct {
	Target    string
	Exchanges []Exchange
	IDs       IDSet
}

// ResolveChain climbs from the target answer through parent answers and
// collects every (question, answer) pair on the way, oldest first. Answers
// whose question cannot be resolved still count as part of the chain but add
// no pair. An unknown target gives an empty chain.
func ResolveChain(t *Tree, targetAssistantID string) *Chain {
	c := &Chain{Target: targetAssistantID, IDs: IDSet{}}

	current, ok := t.Lookup(targetAssistantID)
	for ok && current.IsAssistant() {
		if c.IDs.Has(current.MessageID) {
			// parent cycle; the tree has flagged it
			break
		}
		c.IDs[current.MessageID] = struct{}{}

		if q, found := t.QuestionOf(current.MessageID); found {
			c.Exchanges = append(c.Exchanges, Exchange{Question: q, Answer: current})
		}
		if current.ParentID == "" {
			break
		}
		current, ok = t.Lookup(current.ParentID)
	}

	// collected newest first
	for i, j := 0, len(c.Exchanges)-1; i < j; i, j = i+1, j-1 {
		c.Exchanges[i], c.Exchanges[j] = c.Exchanges[j], c.Exchanges[i]
	}
	return c
}

// Contains reports whether an answer renders as part of the active thread.
func (c *Chain) Contains(id string) bool {
	if c == nil || id == "" {
		return false
	}
	return id == c.Target || c.IDs.Has(id)
}

// Turns flattens the chain into alternating user and model turns.
func (c *Chain) Turns() []Turn {
	if c == nil {
		return nil
	}
	turns := make([]Turn, 0, len(c.Exchanges)*2)
	for _, e := range c.Exchanges {
		turns = append(turns,
			Turn{Role: TurnRoleUser, Text: e.Question.Content},
			Turn{Role: TurnRoleModel, Text: e.Answer.Content},
		)
	}
	return turns
}
