package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Store is the gorm backed message store, user directory and gem ledger.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ListMessages returns one ordered snapshot of the user's live messages.
// created_at is the ordering key; the surrogate id breaks ties in insertion order.
func (s *Store) ListMessages(ctx context.Context, userID string) ([]Message, error) {
	var messages []Message
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND deleted = ?", userID, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// SaveTurn writes the question and its answer in one transaction.
func (s *Store) SaveTurn(ctx context.Context, userMessage *Message, assistantMessage *Message) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMessage).Error; err != nil {
			return fmt.Errorf("failed to create user message: %w", err)
		}
		if err := tx.Create(assistantMessage).Error; err != nil {
			return fmt.Errorf("failed to create assistant message: %w", err)
		}
		return nil
	})
}

// MarkDeleted soft-deletes ids in one statement. Already deleted rows are left alone.
func (s *Store) MarkDeleted(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.DB.WithContext(ctx).Model(&Message{}).
		Where("user_id = ? AND message_id IN ? AND deleted = ?", userID, ids, false).
		Update("deleted", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) SetArchive(ctx context.Context, userID string, messageID string, archive bool) error {
	result := s.DB.WithContext(ctx).Model(&Message{}).
		Where("user_id = ? AND message_id = ? AND deleted = ?", userID, messageID, false).
		Update("archive", archive)
	if result.Error != nil {
		return fmt.Errorf("failed to update archive flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListArchived returns the live archived root questions, newest first.
func (s *Store) ListArchived(ctx context.Context, userID string) ([]Message, error) {
	var messages []Message
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND archive = ? AND deleted = ? AND role = ? AND parent_id = ?",
			userID, true, false, MessageRoleUser, "").
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list archived messages: %w", err)
	}
	return messages, nil
}

// DeletedOwners lists the users owning soft-deleted rows last touched before
// the cutoff.
func (s *Store) DeletedOwners(ctx context.Context, before time.Time) ([]string, error) {
	var uids []string
	err := s.DB.WithContext(ctx).Model(&Message{}).
		Where("deleted = ? AND updated_at < ?", true, before).
		Distinct().
		Pluck("user_id", &uids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted owners: %w", err)
	}
	return uids, nil
}

// ScrubDeleted blanks the text of soft-deleted rows last touched before the
// cutoff. Role, tokens and model stay for the ledger, and updated_at is left
// alone so the rows still age towards PurgeDeleted.
func (s *Store) ScrubDeleted(ctx context.Context, uid string, before time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).Model(&Message{}).
		Where("user_id = ? AND deleted = ? AND updated_at < ? AND content <> ?", uid, true, before, "").
		UpdateColumns(map[string]interface{}{"content": "", "suggested_actions": nil})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to scrub messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeDeleted hard-deletes soft-deleted rows last touched before the cutoff
// and created before createdBefore, the start of the user's counted usage.
func (s *Store) PurgeDeleted(ctx context.Context, uid string, before time.Time, createdBefore time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).
		Where("user_id = ? AND deleted = ? AND updated_at < ? AND created_at < ?", uid, true, before, createdBefore).
		Delete(&Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UserExists(ctx context.Context, username string, email string) bool {
	var count int64
	err := s.DB.WithContext(ctx).Model(&User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return false
	}
	return count > 0
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &user, nil
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*User, error) {
	var user User
	if err := s.DB.WithContext(ctx).Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &user, nil
}

// UpgradeUser attaches credentials to an anonymous user in place.
func (s *Store) UpgradeUser(ctx context.Context, uid string, username string, email string, passwordHash string) error {
	updates := map[string]interface{}{
		"username":     username,
		"email":        nil,
		"password":     passwordHash,
		"is_anonymous": false,
	}
	if email != "" {
		updates["email"] = email
	}
	result := s.DB.WithContext(ctx).Model(&User{}).
		Where("uid = ? AND is_anonymous = ?", uid, true).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to upgrade user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if err := s.DB.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// CurrentSubscription returns the latest "created" subscription active at now
// together with its plan.
func (s *Store) CurrentSubscription(ctx context.Context, uid string, now time.Time) (*Subscription, *Plan, error) {
	var sub Subscription
	err := s.DB.WithContext(ctx).
		Where("user_uid = ? AND action_name = ? AND started_at <= ? AND end_at > ?",
			uid, SubscriptionCreated, now, now).
		Order("started_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("database query failed: %w", err)
	}

	var plan Plan
	if err := s.DB.WithContext(ctx).Where("id = ?", sub.PlanID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("database query failed: %w", err)
	}
	return &sub, &plan, nil
}

func (s *Store) ModelCosts(ctx context.Context) ([]LLMModel, error) {
	var models []LLMModel
	if err := s.DB.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return models, nil
}

// Usage lists token counts in [from, to). Deleted messages are included:
// their tokens were spent.
func (s *Store) Usage(ctx context.Context, uid string, from time.Time, to time.Time) ([]UsageRow, error) {
	var rows []UsageRow
	err := s.DB.WithContext(ctx).Model(&Message{}).
		Select("role", "tokens", "model_name").
		Where("user_id = ? AND created_at >= ? AND created_at < ?", uid, from, to).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}
	return rows, nil
}
