package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// ErrInvalidCredentials hides whether the email or the password was wrong
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService handles operator accounts and authentication
type UserService struct {
	userRepo repository.UserRepository
	jwtCfg   *config.JWTConfig
	logger   *utils.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserRepository, jwtCfg *config.JWTConfig, logger *utils.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		logger:   logger.Named("user_service"),
	}
}

// Authenticate verifies credentials and returns a signed JWT for the user
func (s *UserService) Authenticate(email, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.Active || !user.CheckPassword(password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := user.GenerateToken(s.jwtCfg.Secret, s.jwtCfg.ExpirationHours)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	user.LastLogin = time.Now().UTC()
	if err := s.userRepo.Update(user); err != nil {
		s.logger.Warn("Failed to record last login",
			zap.Uint("user_id", user.ID),
			zap.Error(err),
		)
	}

	return user, token, nil
}

// Register creates a new operator account
func (s *UserService) Register(user *models.User) error {
	if _, err := s.userRepo.GetByEmail(user.Email); err == nil {
		return utils.ErrAlreadyExists
	} else if err != repository.ErrNotFound {
		return err
	}

	if err := s.userRepo.Create(user); err != nil {
		return err
	}

	s.logger.Info("User registered",
		zap.Uint("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)),
	)

	return nil
}

// GetByID returns one user by id
func (s *UserService) GetByID(id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
