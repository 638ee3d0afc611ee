// Package account реализует вход и регистрацию поверх сервиса данных.
// Пароль не проверяется и никуда не отправляется.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ButyrinIA/forum/internal/failure"
	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgInvalidLogin     = "Invalid email or password"
	MsgLoginFailed      = "Login failed. Please try again."
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgUserExists       = "User with this email already exists"
	MsgRegisterFailed   = "Registration failed. Please try again."
	minPasswordLength   = 6
)

type Service struct {
	api    gateway.API
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewService(api gateway.API, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{api: api, logger: logger, now: time.Now}
}

// Login ищет пользователя по email и возвращает сессию для него
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, failure.Validation(MsgFillAllFields)
	}

	users, err := s.api.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	user := findByEmail(users, email)
	if user == nil {
		s.logger.WithField("email", email).Info("login: user not found")
		return nil, failure.NotFound(MsgInvalidLogin)
	}

	return &models.Session{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Register создает пользователя, если email еще не занят
func (s *Service) Register(ctx context.Context, name, email, password, confirm string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" || confirm == "" {
		return nil, failure.Validation(MsgFillAllFields)
	}
	if password != confirm {
		return nil, failure.Validation(MsgPasswordMismatch)
	}
	if len(password) < minPasswordLength {
		return nil, failure.Validation(MsgPasswordTooShort)
	}

	users, err := s.api.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	if findByEmail(users, email) != nil {
		return nil, failure.Conflict(MsgUserExists)
	}

	user, err := s.api.CreateUser(ctx, models.UserDraft{
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

func findByEmail(users []models.User, email string) *models.User {
	for i := range users {
		if users[i].Email == email {
			return &users[i]
		}
	}
	return nil
}
