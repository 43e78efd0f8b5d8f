package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"branchchat/model"
	"branchchat/platform"
)

func newSQLiteStore(t *testing.T) (*model.Store, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, model.InstallDB(db))
	require.NoError(t, model.SeedDefaults(db, "guest", "test-model"))
	return model.NewStore(db), db
}

func TestGuestUpgradeLogin(t *testing.T) {
	store, _ := newSQLiteStore(t)
	tokens := NewTokenService("secret", time.Hour)
	users := NewUserService(store, tokens, "guest", platform.DiscardLogger())
	ctx := context.Background()

	guest, token, err := users.Guest(ctx)
	require.NoError(t, err)
	assert.True(t, guest.IsAnonymous)
	details, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, guest.UID, details.UserUID)

	quota := NewQuotaService(store, platform.DiscardLogger())
	balance, err := quota.Balance(ctx, guest.UID)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, balance.Allotted)
	assert.Zero(t, balance.Used)

	require.NoError(t, users.Upgrade(ctx, guest.UID, Credentials{Username: "alice", Password: "password1"}))
	assert.ErrorIs(t, users.Upgrade(ctx, guest.UID, Credentials{Username: "bob", Password: "password1"}), ErrNotAnonymous)

	token, err = users.Login(ctx, Credentials{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	details, err = tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, guest.UID, details.UserUID)

	_, err = users.Login(ctx, Credentials{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Login(ctx, Credentials{Username: "nobody", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister(t *testing.T) {
	store, _ := newSQLiteStore(t)
	users := NewUserService(store, NewTokenService("secret", time.Hour), "guest", platform.DiscardLogger())
	ctx := context.Background()

	user, err := users.Register(ctx, Credentials{Username: "carol", Email: "carol@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.False(t, user.IsAnonymous)

	_, err = users.Register(ctx, Credentials{Username: "carol", Password: "password2"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = users.Login(ctx, Credentials{Username: "carol", Password: "password1"})
	require.NoError(t, err)
}

func TestTurnAgainstSQLiteStore(t *testing.T) {
	store, _ := newSQLiteStore(t)
	users := NewUserService(store, NewTokenService("secret", time.Hour), "guest", platform.DiscardLogger())
	ctx := context.Background()
	guest, _, err := users.Guest(ctx)
	require.NoError(t, err)

	quota := NewQuotaService(store, platform.DiscardLogger())
	invoker := &fakeInvoker{reply: replyWithActions, usage: TokenUsage{PromptTokens: 100, CandidateTokens: 50}}
	turns := NewTurnService(store, invoker, quota, NewSessionRegistry(), platform.DiscardLogger(), TurnConfig{ModelName: "test-model"})

	first, err := turns.Submit(ctx, guest.UID, SubmitRequest{Text: "What is X?"})
	require.NoError(t, err)
	_, err = turns.Submit(ctx, guest.UID, SubmitRequest{Text: "More", ParentID: first.Assistant.MessageID})
	require.NoError(t, err)

	// a fresh session sees the same tree from the store
	fresh := NewTurnService(store, invoker, quota, NewSessionRegistry(), platform.DiscardLogger(), TurnConfig{ModelName: "test-model"})
	view, err := fresh.View(ctx, guest.UID, "", false)
	require.NoError(t, err)
	require.Len(t, view.Roots, 1)
	require.Len(t, view.Roots[0].Children, 1)
	assert.Equal(t, []string{"Action one", "Action two"}, view.Roots[0].Response.SuggestedActions)

	balance, err := quota.Balance(ctx, guest.UID)
	require.NoError(t, err)
	// two turns of 100 prompt tokens at 0.1 and 50 answer tokens at 0.4
	assert.InDelta(t, 60.0, balance.Used, 1e-9)

	deleted, err := fresh.DeleteThread(ctx, guest.UID, first.User.MessageID)
	require.NoError(t, err)
	assert.Len(t, deleted, 4)

	balance, err = quota.Balance(ctx, guest.UID)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, balance.Used, 1e-9)
}
