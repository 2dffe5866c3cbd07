package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/kidandcat/tracker/internal/auth"
	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
)

type UserService struct {
	store  UserStore
	tokens TokenIssuer
}

func (s *UserService) Register(ctx context.Context, name, email, password string) (*db.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, errs.InvalidArgument("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errs.InvalidArgument("invalid email %q", email)
	}
	if len(password) < 6 {
		return nil, errs.InvalidArgument("password must be at least 6 characters")
	}
	// bcrypt only hashes the first 72 bytes and refuses longer input.
	if len(password) > 72 {
		return nil, errs.InvalidArgument("password must be at most 72 bytes")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &db.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *db.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return "", nil, errs.Unauthenticated("invalid email or password")
		}
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, errs.Unauthenticated("invalid email or password")
	}
	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

func (s *UserService) FindByID(ctx context.Context, id int64) (*db.User, error) {
	return s.store.GetUser(ctx, id)
}

// FindByCredential resolves an Authorization header value, with or
// without the Bearer prefix, to its user.
func (s *UserService) FindByCredential(ctx context.Context, credential string) (*db.User, error) {
	token := auth.BearerToken(credential)
	if token == "" {
		return nil, errs.Unauthenticated("missing token")
	}
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errs.Unauthenticated("invalid token")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, errs.Unauthenticated("invalid token")
		}
		return nil, err
	}
	return u, nil
}
