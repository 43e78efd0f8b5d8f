package conversation

import (
	"fmt"
	"sort"

	"branchchat/model"
)

type AmbiguityKind string

const (
	// AmbiguityDuplicateResponse: more than one answer claims the same question.
	AmbiguityDuplicateResponse AmbiguityKind = "duplicate-response"
	// AmbiguityDuplicateID: two live messages share an id; the later one is ignored.
	AmbiguityDuplicateID AmbiguityKind = "duplicate-id"
	// AmbiguityOrphan: parent or source points at a missing or wrong-role message.
	AmbiguityOrphan AmbiguityKind = "orphan"
	// AmbiguityUnreachable: a question that no root leads to, usually a parent cycle.
	AmbiguityUnreachable AmbiguityKind = "unreachable"
	// AmbiguityCycle: a parent edge leads back into a node already on the path.
	AmbiguityCycle AmbiguityKind = "cycle"
)

// Ambiguity records a structural defect found while building. Building never
// fails on one; the tree degrades and keeps going.
type Ambiguity struct {
	Kind      AmbiguityKind `json:"kind"`
	MessageID string        `json:"message_id"`
	Detail    string        `json:"detail"`
}

// Node is one question and its answer. Message is nil when the answer's
// question is gone; Response is nil while the answer is in flight.
type Node struct {
	Message  *model.Message
	Response *model.Message
	Children []*Node
	Depth    int
	Orphan   bool
}

// ID is the id of the message the node is anchored on.
func (n *Node) ID() string {
	if n.Message != nil {
		return n.Message.MessageID
	}
	return n.Response.MessageID
}

// Tree is a read-only view over one ordered snapshot of live messages.
// Nothing in it mutates the messages it was built from.
type Tree struct {
	Roots       []*Node
	Ambiguities []Ambiguity

	messages  []*model.Message
	byID      map[string]*model.Message
	children  map[string][]*model.Message
	responses map[string][]*model.Message
}

// BuildTree turns the flat message list into a forest. Deleted messages are
// skipped. Roots are top-level questions; a node's children are the
// questions whose parent is the node's answer.
func BuildTree(messages []model.Message) *Tree {
	t := &Tree{
		byID:      make(map[string]*model.Message, len(messages)),
		children:  make(map[string][]*model.Message),
		responses: make(map[string][]*model.Message),
	}

	for i := range messages {
		m := &messages[i]
		if m.Deleted {
			continue
		}
		if _, ok := t.byID[m.MessageID]; ok {
			t.flag(AmbiguityDuplicateID, m.MessageID, "id already used by an earlier message")
			continue
		}
		t.byID[m.MessageID] = m
		t.messages = append(t.messages, m)
	}

	for _, m := range t.messages {
		switch {
		case m.IsUser() && m.ParentID != "":
			t.children[m.ParentID] = append(t.children[m.ParentID], m)
		case m.IsAssistant() && m.SourceUserMessageID != "":
			t.responses[m.SourceUserMessageID] = append(t.responses[m.SourceUserMessageID], m)
		}
	}

	for _, m := range t.messages {
		if m.IsUser() {
			if rs := t.responses[m.MessageID]; len(rs) > 1 {
				t.flag(AmbiguityDuplicateResponse, m.MessageID,
					fmt.Sprintf("%d answers claim this question, using %s", len(rs), rs[0].MessageID))
			}
		}
	}

	visited := make(map[string]bool, len(t.messages))
	for _, m := range t.messages {
		switch {
		case m.IsUser() && m.ParentID == "":
			t.Roots = append(t.Roots, t.build(m, nil, 0, visited))
		case m.IsUser():
			parent, ok := t.byID[m.ParentID]
			if !ok || !parent.IsAssistant() {
				t.flag(AmbiguityOrphan, m.MessageID, fmt.Sprintf("parent %s is not a live answer", m.ParentID))
				n := t.build(m, nil, 0, visited)
				n.Orphan = true
				t.Roots = append(t.Roots, n)
			}
		case m.IsAssistant() && !t.hasQuestion(m):
			t.flag(AmbiguityOrphan, m.MessageID, fmt.Sprintf("source question %q is not a live question", m.SourceUserMessageID))
			n := t.build(nil, m, 0, visited)
			n.Orphan = true
			t.Roots = append(t.Roots, n)
		}
	}

	// Whatever is left hangs off a duplicate answer or sits on a cycle.
	for _, m := range t.messages {
		if m.IsUser() && !visited[m.MessageID] {
			t.flag(AmbiguityUnreachable, m.MessageID, "no root leads to this question")
			n := t.build(m, nil, 0, visited)
			n.Orphan = true
			t.Roots = append(t.Roots, n)
		}
	}

	return t
}

func (t *Tree) build(question *model.Message, answer *model.Message, depth int, visited map[string]bool) *Node {
	n := &Node{Message: question, Response: answer, Depth: depth}
	if question != nil {
		visited[question.MessageID] = true
		if r, ok := t.ResponseOf(question.MessageID); ok {
			n.Response = r
		}
	}
	if n.Response == nil {
		return n
	}
	for _, child := range t.children[n.Response.MessageID] {
		if visited[child.MessageID] {
			t.flag(AmbiguityCycle, child.MessageID, fmt.Sprintf("already placed, reached again from %s", n.Response.MessageID))
			continue
		}
		n.Children = append(n.Children, t.build(child, nil, depth+1, visited))
	}
	return n
}

// hasQuestion reports whether a is the answer a live question resolves to.
func (t *Tree) hasQuestion(a *model.Message) bool {
	q, ok := t.byID[a.SourceUserMessageID]
	if !ok || !q.IsUser() {
		return false
	}
	// Later duplicates stay out of the tree; they are flagged already.
	return true
}

func (t *Tree) flag(kind AmbiguityKind, id string, detail string) {
	t.Ambiguities = append(t.Ambiguities, Ambiguity{Kind: kind, MessageID: id, Detail: detail})
}

// Lookup returns the live message with the given id.
func (t *Tree) Lookup(id string) (*model.Message, bool) {
	m, ok := t.byID[id]
	return m, ok
}

// Messages returns the live messages in creation order.
func (t *Tree) Messages() []*model.Message {
	return t.messages
}

// ChildrenOf returns the questions asked under an answer, in creation order.
func (t *Tree) ChildrenOf(assistantID string) []*model.Message {
	return t.children[assistantID]
}

// ResponseOf returns the answer to a question. When several answers claim the
// same question the earliest wins; ResponsesOf exposes all of them.
func (t *Tree) ResponseOf(userMessageID string) (*model.Message, bool) {
	rs := t.responses[userMessageID]
	if len(rs) == 0 {
		return nil, false
	}
	return rs[0], true
}

func (t *Tree) ResponsesOf(userMessageID string) []*model.Message {
	return t.responses[userMessageID]
}

// QuestionOf returns the question a answers, if a is the answer that question
// resolves to.
func (t *Tree) QuestionOf(assistantID string) (*model.Message, bool) {
	a, ok := t.byID[assistantID]
	if !ok || !a.IsAssistant() {
		return nil, false
	}
	q, ok := t.byID[a.SourceUserMessageID]
	if !ok || !q.IsUser() {
		return nil, false
	}
	if r, ok := t.ResponseOf(q.MessageID); !ok || r != a {
		return nil, false
	}
	return q, true
}

// Walk visits every node depth first, roots in order.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var walk func(nodes []*Node) bool
	walk = func(nodes []*Node) bool {
		for _, n := range nodes {
			if !fn(n) {
				return false
			}
			if !walk(n.Children) {
				return false
			}
		}
		return true
	}
	walk(t.Roots)
}

// IDSet is a set of message ids.
type IDSet map[string]struct{}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids sorted, for stable output.
func (s IDSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeleteTree returns rootID plus every live message that descends from it.
// Descendants are found through parent links and through the link from a
// question to its answer, so deleting a root question takes its answer along.
// The index is built once; the walk is a work-list fixpoint. A root that is
// not live yields an empty set, which makes repeated application inert.
func DeleteTree(messages []model.Message, rootID string) IDSet {
	out := IDSet{}
	edges := make(map[string][]string)
	live := false
	for i := range messages {
		m := &messages[i]
		if m.Deleted {
			continue
		}
		if m.MessageID == rootID {
			live = true
		}
		if m.ParentID != "" {
			edges[m.ParentID] = append(edges[m.ParentID], m.MessageID)
		}
		if m.IsAssistant() && m.SourceUserMessageID != "" {
			edges[m.SourceUserMessageID] = append(edges[m.SourceUserMessageID], m.MessageID)
		}
	}
	if !live {
		return out
	}

	out[rootID] = struct{}{}
	work := []string{rootID}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, next := range edges[id] {
			if out.Has(next) {
				continue
			}
			out[next] = struct{}{}
			work = append(work, next)
		}
	}
	return out
}
