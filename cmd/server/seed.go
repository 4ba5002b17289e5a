package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/npezzotti/staffchat/internal/database"
	"github.com/npezzotti/staffchat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	Id       string     `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     types.Role `json:"role"`
}

type userSeeder interface {
	AddUser(u database.User)
}

// seedUsers loads users from a JSON array into the in-memory store. Other
// stores manage their users elsewhere and are rejected.
func seedUsers(db database.ChatRepository, path string) (int, error) {
	seeder, ok := db.(userSeeder)
	if !ok {
		return 0, fmt.Errorf("seeding is only supported for the in-memory store")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var users []seedUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}

	for i, u := range users {
		if u.Id == "" || u.Email == "" || !u.Role.Valid() {
			return 0, fmt.Errorf("user %d: id, email and a valid role are required", i)
		}
	}

	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, fmt.Errorf("hash password for %s: %w", u.Id, err)
		}

		seeder.AddUser(database.User{
			Id:           u.Id,
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         string(u.Role),
		})
	}

	return len(users), nil
}
