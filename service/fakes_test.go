package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"branchchat/model"
	"branchchat/platform"
)

type fakeStore struct {
	mu       sync.Mutex
	messages []model.Message
	saveErr  error
	saves    int
}

func (f *fakeStore) ListMessages(ctx context.Context, userID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.UserId == userID && !m.Deleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveTurn(ctx context.Context, userMessage *model.Message, assistantMessage *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.messages = append(f.messages, *userMessage, *assistantMessage)
	return nil
}

func (f *fakeStore) MarkDeleted(ctx context.Context, userID string, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	var n int64
	for i := range f.messages {
		if f.messages[i].UserId == userID && set[f.messages[i].MessageID] && !f.messages[i].Deleted {
			f.messages[i].Deleted = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SetArchive(ctx context.Context, userID string, messageID string, archive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].UserId == userID && f.messages[i].MessageID == messageID && !f.messages[i].Deleted {
			f.messages[i].Archive = archive
			return nil
		}
	}
	return model.ErrNotFound
}

func (f *fakeStore) ListArchived(ctx context.Context, userID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.UserId == userID && m.Archive && !m.Deleted && m.IsRoot() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) message(id string) (model.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.MessageID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

type fakeInvoker struct {
	mu       sync.Mutex
	reply    string
	usage    TokenUsage
	err      error
	requests []InvokeRequest
	// release, when set, holds every call until it is closed.
	release chan struct{}
}

func (f *fakeInvoker) Invoke(ctx context.Context, req InvokeRequest) (*Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Text: f.reply, Usage: f.usage, ModelName: "test-model"}, nil
}

func (f *fakeInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeInvoker) last() InvokeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeLedger struct {
	balance *Balance
	err     error
}

func (f *fakeLedger) Balance(ctx context.Context, userID string) (*Balance, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.balance != nil {
		return f.balance, nil
	}
	return &Balance{Used: 0, Allotted: 100, Remaining: 100}, nil
}

var errBoom = errors.New("boom")

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const testUser = "user-1"

func newTestTurnService(store *fakeStore, invoker *fakeInvoker, ledger *fakeLedger) *TurnService {
	t := NewTurnService(store, invoker, ledger, NewSessionRegistry(), platform.DiscardLogger(), TurnConfig{
		ModelName: "test-model",
		Timeout:   time.Second,
	})
	t.now = func() time.Time { return testNow }
	n := 0
	var mu sync.Mutex
	t.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return t
}

func seedMessages(ms ...model.Message) []model.Message {
	for i := range ms {
		ms[i].ID = uint(i + 1)
		ms[i].UserId = testUser
		ms[i].CreatedAt = testNow.Add(time.Duration(i-len(ms)) * time.Minute)
	}
	return ms
}

func userMsg(id, parent, content string) model.Message {
	return model.Message{MessageID: id, Role: model.MessageRoleUser, ParentID: parent, Content: content}
}

func answerMsg(id, source, parent, content string, actions ...string) model.Message {
	return model.Message{
		MessageID:           id,
		Role:                model.MessageRoleAssistant,
		SourceUserMessageID: source,
		ParentID:            parent,
		Content:             content,
		SuggestedActions:    actions,
	}
}
