package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/staffchat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	defaultExp     = time.Hour * 24
	tokenCookieKey = "token"
	tokenQueryKey  = "token"
)

const (
	userIdClaim = "userId"
	roleClaim   = "role"
	nameClaim   = "name"
	expClaim    = "exp"

	defaultUserName = "Unknown"
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(identityKey).(types.Identity)
	return id, ok
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// tokenFromRequest looks for a session token in the Authorization header,
// then the token cookie, then the token query parameter.
func tokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return token, true
		}
	}

	if c, err := r.Cookie(tokenCookieKey); err == nil && c.Value != "" {
		return c.Value, true
	}

	if token := r.URL.Query().Get(tokenQueryKey); token != "" {
		return token, true
	}

	return "", false
}

func createJwtForSession(id types.Identity, signingKey []byte, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: id.UserId,
		roleClaim:   string(id.Role),
		nameClaim:   id.Name,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(signingKey)
}

func verifyToken(tokenString string, signingKey []byte) (types.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid token claims")
	}

	userId, _ := claims[userIdClaim].(string)
	if userId == "" {
		return types.Identity{}, fmt.Errorf("invalid user id claim")
	}

	role, _ := claims[roleClaim].(string)
	name, _ := claims[nameClaim].(string)
	if name == "" {
		name = defaultUserName
	}

	return types.Identity{UserId: userId, Role: types.Role(role), Name: name}, nil
}

func (s *ChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if apiErr := decodeBody(r, &lr, false); apiErr != nil {
		s.writeError(w, r, apiErr)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		s.writeError(w, r, NewBadRequestError("email and password are required"))
		return
	}

	dbUser, err := s.db.GetUserByEmail(r.Context(), lr.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewUnauthorizedError("invalid email or password"))
		} else {
			s.writeError(w, r, NewInternalServerError(err))
		}
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeError(w, r, NewUnauthorizedError("invalid email or password"))
		return
	}

	user := types.User{
		Id:    dbUser.Id,
		Name:  dbUser.Name,
		Email: dbUser.Email,
		Role:  types.Role(dbUser.Role),
	}

	token, err := createJwtForSession(types.Identity{
		UserId: user.Id,
		Role:   user.Role,
		Name:   user.Name,
	}, s.signingKey, defaultExp)
	if err != nil {
		s.writeError(w, r, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultExp))
	s.writeData(w, http.StatusOK, LoginResponse{Token: token, User: user}, "login successful")
}

func (s *ChatApp) session(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError(""))
		return
	}

	s.writeData(w, http.StatusOK, id, "")
}

func (s *ChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// an already expired cookie makes the browser drop it
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
