package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/requestdata"
	"github.com/yungbote/adapta-backend/internal/types"
	"github.com/yungbote/adapta-backend/internal/utils"
)

type AuthService struct {
	userRepo  repos.UserRepo
	tokenRepo repos.UserTokenRepo
	jwtSecret []byte
	accessTTL time.Duration
	log       *logger.Logger
}

func NewAuthService(userRepo repos.UserRepo, tokenRepo repos.UserTokenRepo, log *logger.Logger) *AuthService {
	secret := utils.GetEnv(log, "JWT_SECRET", "")
	if secret == "" {
		log.Warn("JWT_SECRET is not set, using an insecure default")
		secret = "dev-only-secret"
	}
	ttlMinutes := utils.GetEnvAsInt(log, "ACCESS_TOKEN_TTL_MINUTES", 60)
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		jwtSecret: []byte(secret),
		accessTTL: time.Duration(ttlMinutes) * time.Minute,
		log:       log,
	}
}

type AuthResult struct {
	User         *types.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

func (s *AuthService) GetAccessTTL() time.Duration {
	return s.accessTTL
}

func (s *AuthService) RegisterUser(ctx context.Context, email, password, firstName, lastName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}
	if _, err := s.userRepo.GetByEmail(ctx, email, nil); err == nil {
		return nil, ErrEmailAlreadyInUse
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &types.User{
		Email:     email,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}
	if err := s.userRepo.Create(ctx, user, nil); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("User registered", "user_id", user.ID.String())
	return s.issueTokens(ctx, user)
}

func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, email, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user)
}

func (s *AuthService) RefreshUser(ctx context.Context, refreshToken string) (*AuthResult, error) {
	row, err := s.tokenRepo.GetByRefreshToken(ctx, refreshToken, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	user, err := s.userRepo.GetByID(ctx, row.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load user for refresh: %w", err)
	}
	if err := s.tokenRepo.Delete(ctx, row.ID, nil); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *AuthService) LogoutUser(ctx context.Context) error {
	data := requestdata.GetRequestData(ctx)
	if data == nil || data.UserID == nil {
		return ErrNotAuthenticated
	}
	return s.tokenRepo.DeleteByUserID(ctx, *data.UserID, nil)
}

// SetContextFromToken validates the access token and attaches the
// authenticated identity to the context.
func (s *AuthService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ctx, ErrNotAuthenticated
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return ctx, ErrNotAuthenticated
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return ctx, ErrNotAuthenticated
	}
	if _, err := s.tokenRepo.GetByAccessToken(ctx, tokenString, nil); err != nil {
		return ctx, ErrNotAuthenticated
	}
	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      &userID,
	}), nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *types.User) (*AuthResult, error) {
	expiresAt := time.Now().UTC().Add(s.accessTTL)
	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": expiresAt.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken := uuid.NewString()
	row := &types.UserToken{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := s.tokenRepo.Create(ctx, row, nil); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}
	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}
