package service

import (
	"context"
	"errors"

	"branchchat/conversation"
	"branchchat/model"
)

// DeleteThread soft-deletes a message and everything below it in one batched
// update, then drops them from the session.
func (t *TurnService) DeleteThread(ctx context.Context, userID string, messageID string) ([]string, error) {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if s.state.busy() {
		return nil, newTurnError(ErrTurnInFlight, "Please wait for the current answer", nil)
	}
	ids := conversation.DeleteTree(s.messages, messageID)
	if len(ids) == 0 {
		return nil, newTurnError(ErrNotFound, "Message not found", nil)
	}

	deleted := ids.Slice()
	n, err := t.store.MarkDeleted(ctx, userID, deleted)
	if err != nil {
		return nil, newTurnError(ErrPersistence, "Failed to delete the thread", err)
	}
	t.logger.Infof("[%s] deleted %d messages under %s for %s", requestID(ctx), n, messageID, userID)

	kept := s.messages[:0]
	for _, m := range s.messages {
		if !ids.Has(m.MessageID) {
			kept = append(kept, m)
		}
	}
	s.messages = kept

	highlights := s.highlights[:0]
	for _, h := range s.highlights {
		if !ids.Has(h.MessageID) && !ids.Has(h.ChildMessageID) {
			highlights = append(highlights, h)
		}
	}
	s.highlights = highlights
	if ids.Has(s.historyTarget) {
		s.historyTarget = ""
	}
	if s.pending != nil && ids.Has(s.pending.MessageID) {
		s.pending = nil
	}
	return deleted, nil
}

// SetArchive bookmarks or un-bookmarks a thread. Only root questions carry the flag.
func (t *TurnService) SetArchive(ctx context.Context, userID string, messageID string, archive bool) error {
	s, err := t.lockSession(ctx, userID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	m, ok := s.lookup(messageID)
	if !ok {
		return newTurnError(ErrNotFound, "Message not found", nil)
	}
	if !m.IsRoot() {
		return validationError("Only a thread's first question can be archived")
	}
	if err := t.store.SetArchive(ctx, userID, messageID, archive); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return newTurnError(ErrNotFound, "Message not found", err)
		}
		return newTurnError(ErrPersistence, "Failed to update the thread", err)
	}
	m.Archive = archive
	return nil
}

// Archived lists the bookmarked threads, newest first.
func (t *TurnService) Archived(ctx context.Context, userID string) ([]model.Message, error) {
	messages, err := t.store.ListArchived(ctx, userID)
	if err != nil {
		return nil, newTurnError(ErrPersistence, "Failed to load archives", err)
	}
	return messages, nil
}
