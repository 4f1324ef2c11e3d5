package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sponsorbridge/backend/internal/apperr"
	"github.com/sponsorbridge/backend/internal/auth"
	"github.com/sponsorbridge/backend/internal/config"
	"github.com/sponsorbridge/backend/internal/models"
	"github.com/sponsorbridge/backend/internal/repositories"
	"github.com/sponsorbridge/backend/internal/ton"
)

type UserService struct {
	users *repositories.UserRepo
	cfg   *config.Config
	log   *zap.Logger
}

func NewUserService(users *repositories.UserRepo, cfg *config.Config, log *zap.Logger) *UserService {
	return &UserService{users: users, cfg: cfg, log: log}
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// LoginTelegram validates mini-app initData, upserts the user, and issues a
// JWT. The requested role merges monotonically with the stored one.
func (s *UserService) LoginTelegram(ctx context.Context, initData, requestedRole string) (*LoginResult, error) {
	if s.cfg.BotToken == "" {
		return nil, fmt.Errorf("%w: telegram login is not configured", apperr.ErrAuth)
	}

	vals, err := auth.ValidateTelegramWebAppData(initData, s.cfg.BotToken, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuth, err)
	}

	var tgUser struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal([]byte(vals.Get("user")), &tgUser); err != nil || tgUser.ID == 0 {
		return nil, fmt.Errorf("%w: initData has no user", apperr.ErrAuth)
	}

	role := requestedRole
	switch role {
	case models.RoleCreatorOnly, models.RoleAdvertiserOnly, models.RoleBoth:
	case "":
		role = models.RoleAdvertiserOnly
	default:
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, requestedRole)
	}

	var username *string
	if tgUser.Username != "" {
		username = &tgUser.Username
	}
	user, err := s.users.UpsertByExternalID(ctx, tgUser.ID, username, role)
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, user.ID, user.ExternalID, user.Role, s.cfg.JWTExpiration)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SetPayoutAddress binds the wallet that releases and refunds pay into.
func (s *UserService) SetPayoutAddress(ctx context.Context, userID int64, address string) (*models.User, error) {
	if err := ton.ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := s.users.SetPayoutAddress(ctx, userID, address); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
