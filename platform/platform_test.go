package platform

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("  あなたは先生です。\n"), 0o644))

	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("SQL_DRIVER=SQLite\nLLM_TIMEOUT=soon\nSYSTEM_PROMPT_FILE="+prompt+"\n"), 0o644))
	for _, key := range []string{"SQL_DRIVER", "LLM_TIMEOUT", "SYSTEM_PROMPT_FILE"} {
		key := key
		t.Cleanup(func() { os.Unsetenv(key) })
	}
	t.Setenv("PORT", "9090")

	config := LoadConfig(env)
	assert.Equal(t, "9090", config.Port)
	assert.Equal(t, DriverSQLite, config.SQL.Driver)
	assert.Equal(t, 60*time.Second, config.LLM.Timeout)
	assert.Equal(t, 30*24*time.Hour, config.PurgeRetention)
	assert.Equal(t, "guest", config.GuestPlanID)
	assert.Equal(t, "あなたは先生です。", config.SystemPrompt())

	config.SystemPromptFile = filepath.Join(dir, "missing.txt")
	assert.Empty(t, config.SystemPrompt())
}

func TestOpenDB(t *testing.T) {
	db, err := OpenDB(SQLConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())

	_, err = OpenDB(SQLConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestHookWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&LogFormatter{})
	l.AddHook(NewHook(dir, "app"))

	l.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02"), "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[info] hello")
}
