package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/npezzotti/staffchat/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_seedUsers(t *testing.T) {
	t.Run("loads users", func(t *testing.T) {
		repo := database.NewMemoryChatRepository()
		path := writeSeed(t, `[
			{"id":"owner-1","name":"Olivia","email":"olivia@example.com","password":"secret","role":"owner"},
			{"id":"emp-1","name":"Evan","email":"evan@example.com","password":"secret","role":"employee"}
		]`)

		n, err := seedUsers(repo, path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		u, err := repo.GetUserByEmail(context.Background(), "evan@example.com")
		require.NoError(t, err)
		assert.Equal(t, "emp-1", u.Id)
		assert.Equal(t, "employee", u.Role)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret")))
	})

	tcases := []struct {
		name    string
		content string
	}{
		{name: "invalid role", content: `[{"id":"x","email":"x@example.com","role":"admin"}]`},
		{name: "missing email", content: `[{"id":"x","role":"owner"}]`},
		{name: "not json", content: `id,email`},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := database.NewMemoryChatRepository()
			_, err := seedUsers(repo, writeSeed(t, tc.content))
			assert.Error(t, err)

			_, err = repo.FindFirstUserByRole(context.Background(), "owner")
			assert.Error(t, err, "nothing is loaded on failure")
		})
	}

	t.Run("postgres store is rejected", func(t *testing.T) {
		_, err := seedUsers(&database.PgChatRepository{}, writeSeed(t, `[]`))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := seedUsers(database.NewMemoryChatRepository(), filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}
