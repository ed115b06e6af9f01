package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailAlreadyExists = errors.New("user already registered")
	ErrEmailNotVerified   = errors.New("email not confirmed")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidToken       = errors.New("invalid or expired verification link")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// SignUpRequest mirrors the credential store's sign-up call.
type SignUpRequest struct {
	Email    string
	Password string
	Redirect string
	Metadata map[string]string
}

// Session is returned by SignIn and carries the bearer token.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

// AuthService is the local credential store: accounts, password hashes,
// email confirmation and bearer sessions.
type AuthService struct {
	userRepository         repository.UserRepository
	profileRepository      repository.ProfileRepository
	tokenRepository        repository.TokenRepository
	emailService           *EmailService
	bus                    events.Bus
	passwordRules          validation.PasswordRules
	jwtSecret              string
	jwtExpiry              time.Duration
	tokenEmailVerifyExpiry time.Duration
}

func NewAuthService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	tokenRepository repository.TokenRepository,
	emailService *EmailService,
	bus events.Bus,
	passwordRules validation.PasswordRules,
	jwtSecret string,
	jwtExpiry time.Duration,
	tokenEmailVerifyExpiry time.Duration,
) *AuthService {
	return &AuthService{
		userRepository:         userRepository,
		profileRepository:      profileRepository,
		tokenRepository:        tokenRepository,
		emailService:           emailService,
		bus:                    bus,
		passwordRules:          passwordRules,
		jwtSecret:              jwtSecret,
		jwtExpiry:              jwtExpiry,
		tokenEmailVerifyExpiry: tokenEmailVerifyExpiry,
	}
}

// SignUp creates an unconfirmed account with a pending basic profile and
// sends the confirmation email.
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*model.User, error) {
	email := validation.NormalizeEmail(req.Email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	err = validation.ValidatePassword(req.Password, s.passwordRules)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: &hashedPassword,
	}
	profile := &model.Profile{
		UserID: user.ID,
		Name:   strings.TrimSpace(req.Metadata["name"]),
		Status: model.ProfileStatusPending,
		Role:   model.RoleBasic,
	}

	err = s.userRepository.CreateWithProfile(ctx, user, profile)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up", "user_id", user.ID, "email", email)

	// The account exists at this point; a lost email can be re-sent.
	err = s.issueVerification(ctx, user, req.Redirect)
	if err != nil {
		slog.Warn("failed to send verification email", "error", err, "user_id", user.ID)
	}

	return user, nil
}

// SignIn checks credentials and returns a bearer session. Unknown emails
// return repository.ErrUserNotFound, a wrong password ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !user.HasPassword() || s.ComparePassword(password, *user.PasswordHash) != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified() {
		return nil, ErrEmailNotVerified
	}

	profile, err := s.profileRepository.ByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile.Status == model.ProfileStatusDeactivated {
		return nil, ErrAccountDeactivated
	}

	expiresAt := time.Now().Add(s.jwtExpiry)
	token, err := s.GenerateJWT(user, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("user signed in", "user_id", user.ID)
	return &Session{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt, User: user}, nil
}

// ResendVerification re-sends the confirmation email. Unknown and already
// confirmed addresses succeed silently; it never creates an account.
func (s *AuthService) ResendVerification(ctx context.Context, email, redirect string) error {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return ErrInvalidEmail
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("verification resend requested for unknown email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.IsVerified() {
		slog.Info("verification resend requested for confirmed email", "user_id", user.ID)
		return nil
	}

	return s.issueVerification(ctx, user, redirect)
}

// issueVerification replaces any unused confirmation token with a fresh one and mails it.
func (s *AuthService) issueVerification(ctx context.Context, user *model.User, redirect string) error {
	verificationToken, err := s.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.tokenRepository.Replace(ctx, &model.Token{
		UserID:    user.ID,
		Purpose:   model.TokenPurposeEmailVerify,
		Value:     verificationToken,
		ExpiresAt: time.Now().Add(s.tokenEmailVerifyExpiry),
	})
	if err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	return s.emailService.SendVerificationEmail(ctx, user.Email, verificationToken, redirect)
}

// VerifyEmail consumes a confirmation token, stamps the account and
// announces the auth state change.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	tokenModel, err := s.tokenRepository.Consume(ctx, token, model.TokenPurposeEmailVerify)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	user, err := s.userRepository.MarkVerified(ctx, tokenModel.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	slog.Info("email verified", "user_id", user.ID)

	publish(ctx, s.bus, events.TopicAuthStateChanged, events.AuthStateChanged{
		UserID:           user.ID,
		Email:            user.Email,
		EmailConfirmedAt: user.EmailVerifiedAt,
	})

	return user, nil
}

// UserExists is the authoritative existence query.
func (s *AuthService) UserExists(ctx context.Context, email string) (bool, error) {
	_, err := s.userRepository.ByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AccountStatus reports whether an account exists and whether it is confirmed.
func (s *AuthService) AccountStatus(ctx context.Context, email string) (exists, confirmed bool, err error) {
	user, err := s.userRepository.ByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, user.IsVerified(), nil
}

// Session resolves a bearer token to its user and profile.
func (s *AuthService) Session(ctx context.Context, accessToken string) (*model.User, *model.Profile, error) {
	claims, err := s.VerifyJWT(accessToken)
	if err != nil {
		return nil, nil, ErrInvalidSession
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, nil, ErrInvalidSession
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, nil, ErrInvalidSession
	}

	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		return nil, nil, ErrInvalidSession
	}

	// Security: never carry the password hash past this point
	user.PasswordHash = nil
	return user, profile, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *AuthService) GenerateJWT(user *model.User, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
