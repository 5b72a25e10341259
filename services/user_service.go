package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleStaff         = "staff"
	minPasswordLength = 8
)

// TokenIssuer signs access tokens for authenticated staff users.
type TokenIssuer interface {
	GenerateToken(userID uint, role string) (string, error)
}

type UserService struct {
	store  Store
	tokens TokenIssuer
	log    *logrus.Logger
}

func NewUserService(store Store, tokens TokenIssuer, log *logrus.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, log: log}
}

func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, Validation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, Validation("email is invalid")
	}
	if len(password) < minPasswordLength {
		return nil, Validation("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Internal("failed to hash password", err)
	}
	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     RoleStaff,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &Error{Kind: KindConflict, Message: "email is already registered"}
		}
		return nil, wrapStore(err, "failed to register user")
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("user registered")
	return user, nil
}

// Login checks the credentials and returns a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrUnauthorized
	}
	if err != nil {
		return "", nil, wrapStore(err, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, Internal("failed to sign token", err)
	}
	s.log.WithField("user_id", user.ID).Info("login successful")
	return token, user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, lookup(err, "user", userID)
	}
	return user, nil
}
