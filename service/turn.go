package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"branchchat/conversation"
	"branchchat/model"
)

// MessageStore is the persistent message collaborator.
type MessageStore interface {
	ListMessages(ctx context.Context, userID string) ([]model.Message, error)
	SaveTurn(ctx context.Context, userMessage *model.Message, assistantMessage *model.Message) error
	MarkDeleted(ctx context.Context, userID string, ids []string) (int64, error)
	SetArchive(ctx context.Context, userID string, messageID string, archive bool) error
	ListArchived(ctx context.Context, userID string) ([]model.Message, error)
}

type TurnConfig struct {
	SystemPrompt string
	ModelName    string
	Timeout      time.Duration
}

// TurnService drives request/response cycles and owns the sessions.
type TurnService struct {
	store    MessageStore
	invoker  Invoker
	ledger   Ledger
	sessions *SessionRegistry
	logger   logrus.FieldLogger
	config   TurnConfig

	now   func() time.Time
	newID func() string
}

func NewTurnService(store MessageStore, invoker Invoker, ledger Ledger, sessions *SessionRegistry, logger logrus.FieldLogger, config TurnConfig) *TurnService {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &TurnService{
		store:    store,
		invoker:  invoker,
		ledger:   ledger,
		sessions: sessions,
		logger:   logger,
		config:   config,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// SubmitRequest is a new question. ParentID is the answer it replies to;
// AssistantID, when set, is the id the answer will be stored under.
type SubmitRequest struct {
	Text        string `json:"text"`
	ParentID    string `json:"parentId"`
	AssistantID string `json:"-"`
}

type TurnResult struct {
	User      model.Message `json:"user"`
	Assistant model.Message `json:"assistant"`
}

// loadLocked loads one ordered snapshot from the store on first use. The
// caller must hold s.mu.
func (t *TurnService) loadLocked(ctx context.Context, s *Session) error {
	if s.loaded {
		return nil
	}
	messages, err := t.store.ListMessages(ctx, s.userID)
	if err != nil {
		return err
	}
	s.messages = messages
	s.loaded = true
	return nil
}

func (t *TurnService) lockSession(ctx context.Context, userID string) (*Session, error) {
	s := t.sessions.Get(userID)
	s.mu.Lock()
	if err := t.loadLocked(ctx, s); err != nil {
		s.mu.Unlock()
		return nil, newTurnError(ErrPersistence, "Failed to load the conversation", err)
	}
	return s, nil
}

// Submit runs one turn end to end. Nothing is persisted or appended unless
// both the model call and the batch write succeed.
func (t *TurnService) Submit(ctx context.Context, userID string, req SubmitRequest) (*TurnResult, error) {
	res, err := t.submit(ctx, userID, req)
	turnsTotal.WithLabelValues(turnOutcome(err)).Inc()
	return res, err
}

func (t *TurnService) submit(ctx context.Context, userID string, req SubmitRequest) (*TurnResult, error) {
	rid := requestID(ctx)
	if strings.TrimSpace(req.Text) == "" {
		return nil, validationError("Message must not be empty")
	}

	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.state.busy() {
		s.mu.Unlock()
		return nil, newTurnError(ErrTurnInFlight, "Please wait for the current answer", nil)
	}
	if req.ParentID != "" {
		if p, ok := s.lookup(req.ParentID); !ok || !p.IsAssistant() {
			s.mu.Unlock()
			return nil, validationError("Parent must be an existing answer")
		}
	}
	if req.AssistantID != "" {
		if _, ok := s.lookup(req.AssistantID); ok {
			s.mu.Unlock()
			return nil, validationError("Answer id is already used")
		}
	}
	s.state = TurnSubmitting
	s.lastError = ""
	messages := append([]model.Message(nil), s.messages...)
	historyTarget := s.historyTarget
	settings := s.settings
	s.mu.Unlock()

	result, err := t.run(ctx, userID, req, messages, historyTarget, settings)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// Errored is reached only from AwaitingModel or Persisting; a
		// rejected pre-flight check leaves the session idle.
		if s.state == TurnSubmitting {
			s.state = TurnIdle
		} else {
			s.state = TurnErrored
		}
		s.lastError = UserMessage(err)
		t.logger.Warnf("[%s] turn for %s failed, %s", rid, userID, err)
		return nil, err
	}
	s.messages = append(s.messages, result.User, result.Assistant)
	s.state = TurnIdle
	t.logger.Infof("[%s] turn for %s saved as %s/%s", rid, userID, result.User.MessageID, result.Assistant.MessageID)
	return result, nil
}

func (t *TurnService) setState(userID string, state TurnState) {
	s := t.sessions.Get(userID)
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (t *TurnService) run(ctx context.Context, userID string, req SubmitRequest, messages []model.Message, historyTarget string, settings Settings) (*TurnResult, error) {
	if err := t.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	tree := conversation.BuildTree(messages)
	t.reportAmbiguities(ctx, userID, tree)

	// An explicit reply replays its own thread; otherwise the history target's.
	chainTarget := req.ParentID
	parentID := req.ParentID
	if chainTarget == "" && historyTarget != "" {
		if _, ok := tree.Lookup(historyTarget); ok {
			chainTarget = historyTarget
			parentID = historyTarget
		}
	}
	var turns []conversation.Turn
	if chainTarget != "" {
		turns = conversation.ResolveChain(tree, chainTarget).Turns()
	}
	turns = append(turns, conversation.Turn{
		Role: conversation.TurnRoleUser,
		Text: conversation.ComposeUserTurn(req.Text, true),
	})

	t.setState(userID, TurnAwaitingModel)
	callCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()
	start := time.Now()
	completion, err := t.invoker.Invoke(callCtx, InvokeRequest{
		System: conversation.ComposeSystemDirective(t.config.SystemPrompt, settings.Quality, settings.Tone),
		Turns:  turns,
	})
	modelLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, newTurnError(ErrModelInvocation, "The model could not answer, please try again", err)
	}

	reply := conversation.ParseResponse(completion.Text)
	if reply.Body == "" {
		return nil, newTurnError(ErrModelInvocation, "The model returned an empty answer, please try again", errEmptyCompletion)
	}

	t.setState(userID, TurnPersisting)
	modelName := completion.ModelName
	if modelName == "" {
		modelName = t.config.ModelName
	}
	now := t.now()
	userMessage := model.Message{
		MessageID: t.newID(),
		UserId:    userID,
		Role:      model.MessageRoleUser,
		Content:   req.Text,
		ParentID:  parentID,
		Tokens:    completion.Usage.PromptTokens,
		ModelName: modelName,
		CreatedAt: now,
	}
	assistantID := req.AssistantID
	if assistantID == "" {
		assistantID = t.newID()
	}
	assistantMessage := model.Message{
		MessageID:           assistantID,
		UserId:              userID,
		Role:                model.MessageRoleAssistant,
		Content:             reply.Body,
		ParentID:            parentID,
		SourceUserMessageID: userMessage.MessageID,
		SuggestedActions:    reply.Actions,
		Tokens:              completion.Usage.CandidateTokens + completion.Usage.ThoughtTokens,
		ModelName:           modelName,
		CreatedAt:           now,
	}

	if err := t.store.SaveTurn(ctx, &userMessage, &assistantMessage); err != nil {
		return nil, newTurnError(ErrPersistence, "The answer could not be saved", err)
	}
	tokensTotal.WithLabelValues(string(model.MessageRoleUser)).Add(float64(userMessage.Tokens))
	tokensTotal.WithLabelValues(string(model.MessageRoleAssistant)).Add(float64(assistantMessage.Tokens))

	return &TurnResult{User: userMessage, Assistant: assistantMessage}, nil
}

func (t *TurnService) checkQuota(ctx context.Context, userID string) error {
	balance, err := t.ledger.Balance(ctx, userID)
	switch {
	case errors.Is(err, ErrNoActivePlan):
		return newTurnError(ErrQuotaExceeded, "No active plan, please upgrade", err)
	case err != nil:
		return newTurnError(ErrLedgerUnavailable, "Could not check your gem balance, please try again", err)
	case balance.Exhausted():
		return newTurnError(ErrQuotaExceeded, "You have used all your gems for this period, please upgrade", nil)
	}
	return nil
}

func (t *TurnService) reportAmbiguities(ctx context.Context, userID string, tree *conversation.Tree) {
	for _, a := range tree.Ambiguities {
		ambiguitiesTotal.WithLabelValues(string(a.Kind)).Inc()
		t.logger.Warnf("[%s] conversation of %s: %s at %s, %s", requestID(ctx), userID, a.Kind, a.MessageID, a.Detail)
	}
}

// answer returns a live answer of the user's session.
func (t *TurnService) answer(ctx context.Context, userID string, messageID string) (model.Message, error) {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return model.Message{}, err
	}
	defer s.mu.Unlock()
	m, ok := s.lookup(messageID)
	if !ok || !m.IsAssistant() {
		return model.Message{}, newTurnError(ErrNotFound, "Answer not found", nil)
	}
	return *m, nil
}

// Action submits one of an answer's suggested actions as a reply to it.
func (t *TurnService) Action(ctx context.Context, userID string, messageID string, action string) (*TurnResult, error) {
	a, err := t.answer(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	action = strings.TrimSpace(action)
	for _, suggested := range a.SuggestedActions {
		if suggested == action {
			return t.Submit(ctx, userID, SubmitRequest{Text: action, ParentID: messageID})
		}
	}
	return nil, validationError("Not a suggested action of this answer")
}

// Retry re-asks from another angle, quoting the unsatisfying answer.
func (t *TurnService) Retry(ctx context.Context, userID string, messageID string) (*TurnResult, error) {
	a, err := t.answer(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	return t.Submit(ctx, userID, SubmitRequest{Text: conversation.RetryPrompt(a.Content), ParentID: messageID})
}

// Select records the user's current selection inside an answer. An empty
// selection clears the pending one and is not an error.
func (t *TurnService) Select(ctx context.Context, userID string, sel conversation.Selection) (*conversation.Selection, error) {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if strings.TrimSpace(sel.Text) == "" {
		s.pending = nil
		return nil, nil
	}
	m, ok := s.lookup(sel.MessageID)
	if !ok || !m.IsAssistant() {
		return nil, newTurnError(ErrNotFound, "Answer not found", nil)
	}
	text, err := conversation.CheckSelection(m.Content, sel)
	if err != nil {
		s.pending = nil
		return nil, newTurnError(ErrValidation, "More detail is not offered for code", err)
	}
	sel.Text = text
	s.pending = &sel
	return &sel, nil
}

// RequestDetail asks for elaboration on a selected span. The highlight is
// recorded before the call and linked to the pre-generated answer id; it is
// removed again if the turn fails. An empty selection uses the pending one.
func (t *TurnService) RequestDetail(ctx context.Context, userID string, messageID string, sel conversation.Selection) (*TurnResult, error) {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sel.Text) == "" && s.pending != nil && s.pending.MessageID == messageID {
		sel = *s.pending
	}
	sel.MessageID = messageID
	m, ok := s.lookup(messageID)
	if !ok || !m.IsAssistant() {
		s.mu.Unlock()
		return nil, newTurnError(ErrNotFound, "Answer not found", nil)
	}
	text, err := conversation.CheckSelection(m.Content, sel)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, conversation.ErrEmptySelection) {
			return nil, validationError("Select some text first")
		}
		return nil, newTurnError(ErrValidation, "More detail is not offered for code", err)
	}
	if s.state.busy() {
		s.mu.Unlock()
		return nil, newTurnError(ErrTurnInFlight, "Please wait for the current answer", nil)
	}
	childID := t.newID()
	s.highlights = append(s.highlights, conversation.HighlightedSelection{
		MessageID:      messageID,
		Text:           text,
		ChildMessageID: childID,
	})
	s.pending = nil
	s.mu.Unlock()

	result, err := t.Submit(ctx, userID, SubmitRequest{
		Text:        conversation.DetailPrompt(text),
		ParentID:    messageID,
		AssistantID: childID,
	})
	if err != nil {
		s.mu.Lock()
		s.removeHighlight(childID)
		s.mu.Unlock()
		return nil, err
	}
	return result, nil
}

func (t *TurnService) Settings(userID string) Settings {
	s := t.sessions.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings changes quality and tone; an empty value keeps the current one.
func (t *TurnService) UpdateSettings(userID string, quality string, tone string) (Settings, error) {
	s := t.sessions.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if quality != "" {
		q, err := conversation.ParseQuality(quality)
		if err != nil {
			return s.settings, newTurnError(ErrValidation, "Unknown quality", err)
		}
		next.Quality = q
	}
	if tone != "" {
		tn, err := conversation.ParseTone(tone)
		if err != nil {
			return s.settings, newTurnError(ErrValidation, "Unknown tone", err)
		}
		next.Tone = tn
	}
	s.settings = next
	return next, nil
}

// SetHistoryTarget flags an answer whose thread is replayed on the next
// question. An empty id clears it.
func (t *TurnService) SetHistoryTarget(ctx context.Context, userID string, messageID string) error {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if messageID == "" {
		s.historyTarget = ""
		return nil
	}
	m, ok := s.lookup(messageID)
	if !ok || !m.IsAssistant() {
		return newTurnError(ErrNotFound, "Answer not found", nil)
	}
	s.historyTarget = messageID
	return nil
}

func (t *TurnService) Snapshot(ctx context.Context, userID string) (SessionSnapshot, error) {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// ConversationView is the rendered forest together with the session state
// the client needs to draw it.
type ConversationView struct {
	*conversation.View
	State     string   `json:"state"`
	LastError string   `json:"lastError,omitempty"`
	Settings  Settings `json:"settings"`
}

// View derives the render view from the session. Nothing is cached; every
// call rebuilds the tree from the current message list.
func (t *TurnService) View(ctx context.Context, userID string, hovered string, renderHTML bool) (*ConversationView, error) {
	snap, err := t.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	tree := conversation.BuildTree(snap.Messages)
	t.reportAmbiguities(ctx, userID, tree)
	view, err := conversation.BuildView(tree, conversation.ViewOptions{
		Highlights:    snap.Highlights,
		HistoryTarget: snap.HistoryTarget,
		Hovered:       hovered,
		RenderHTML:    renderHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build view: %w", err)
	}
	return &ConversationView{
		View:      view,
		State:     snap.State.String(),
		LastError: snap.LastError,
		Settings:  snap.Settings,
	}, nil
}

// RenderMessage renders one answer with its highlights to HTML.
func (t *TurnService) RenderMessage(ctx context.Context, userID string, messageID string) (string, error) {
	snap, err := t.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, m := range snap.Messages {
		if m.MessageID == messageID && !m.Deleted {
			return conversation.RenderHTML(m.Content, conversation.HighlightsFor(snap.Highlights, messageID))
		}
	}
	return "", newTurnError(ErrNotFound, "Message not found", nil)
}

// Reload drops the volatile state, highlights included, and loads a fresh
// snapshot.
func (t *TurnService) Reload(ctx context.Context, userID string) error {
	s := t.sessions.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.busy() {
		return newTurnError(ErrTurnInFlight, "Please wait for the current answer", nil)
	}
	s.loaded = false
	s.highlights = nil
	s.pending = nil
	if err := t.loadLocked(ctx, s); err != nil {
		return newTurnError(ErrPersistence, "Failed to load the conversation", err)
	}
	if _, ok := s.lookup(s.historyTarget); !ok {
		s.historyTarget = ""
	}
	return nil
}
