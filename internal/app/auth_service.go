package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"foerderscout/internal/model"
	"foerderscout/internal/pkg/jwtutil"
	"foerderscout/internal/repository"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

type AuthService struct {
	userRepo      UserStore
	appRepo       ApplicationStore
	jwtSecret     string
	jwtExpiration time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

type RegisterInput struct {
	Email           string
	Password        string
	FullName        string
	CompanyName     string
	CompanySize     *int
	Industry        string
	AnnualRevenue   *int64
	Location        string
	TechnologyStack string
}

type LoginInput struct {
	Email    string
	Password string
}

// ProfileUpdate holds optional profile fields. nil leaves a field unchanged.
type ProfileUpdate struct {
	FullName        *string
	CompanyName     *string
	CompanySize     *int
	Industry        *string
	AnnualRevenue   *int64
	Location        *string
	TechnologyStack *string
}

type ChangePasswordInput struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
}

type AuthResult struct {
	Token     string
	ExpiresIn int64
	User      *model.User
}

type UserStats struct {
	TotalApplications    int64   `json:"total_applications"`
	ApprovedApplications int64   `json:"approved_applications"`
	RejectedApplications int64   `json:"rejected_applications"`
	TotalFundingSecured  float64 `json:"total_funding_secured"`
	SuccessRate          float64 `json:"success_rate"`
}

func NewAuthService(userRepo UserStore, appRepo ApplicationStore, jwtSecret string, jwtExpiration time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		appRepo:       appRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	company := strings.TrimSpace(input.CompanyName)

	if email == "" || !strings.Contains(email, "@") || !validPassword(password) || len([]rune(company)) < 2 {
		return nil, ErrInvalidInput
	}
	if input.CompanySize != nil && *input.CompanySize < 0 {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Email:            email,
		PasswordHash:     string(hash),
		FullName:         strings.TrimSpace(input.FullName),
		CompanyName:      company,
		CompanySize:      input.CompanySize,
		Industry:         strings.TrimSpace(input.Industry),
		AnnualRevenue:    input.AnnualRevenue,
		Location:         strings.TrimSpace(input.Location),
		TechnologyStack:  strings.TrimSpace(input.TechnologyStack),
		SubscriptionTier: model.TierBasic,
		IsActive:         true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) GetUserByID(id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(id uuid.UUID, input ProfileUpdate) (*model.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	if input.CompanyName != nil {
		name := strings.TrimSpace(*input.CompanyName)
		if len([]rune(name)) < 2 {
			return nil, ErrInvalidInput
		}
		user.CompanyName = name
	}
	if input.CompanySize != nil {
		if *input.CompanySize < 0 {
			return nil, ErrInvalidInput
		}
		user.CompanySize = input.CompanySize
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Industry != nil {
		user.Industry = strings.TrimSpace(*input.Industry)
	}
	if input.AnnualRevenue != nil {
		user.AnnualRevenue = input.AnnualRevenue
	}
	if input.Location != nil {
		user.Location = strings.TrimSpace(*input.Location)
	}
	if input.TechnologyStack != nil {
		user.TechnologyStack = strings.TrimSpace(*input.TechnologyStack)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ActiveUser loads the user behind a token. It fails with ErrUserNotFound for
// deleted accounts and ErrUserInactive for deactivated ones.
func (s *AuthService) ActiveUser(id uuid.UUID) (*model.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// Refresh issues a new token for a still active user.
func (s *AuthService) Refresh(userID uuid.UUID) (*AuthResult, error) {
	user, err := s.ActiveUser(userID)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) ChangePassword(input ChangePasswordInput) error {
	newPassword := strings.TrimSpace(input.NewPassword)
	if !validPassword(newPassword) {
		return ErrInvalidInput
	}
	user, err := s.GetUserByID(input.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(strings.TrimSpace(input.CurrentPassword))); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	user.PasswordHash = string(hash)
	return s.userRepo.Update(user)
}

// Stats summarises the user's applications. Success rate is approved over decided.
func (s *AuthService) Stats(userID uuid.UUID) (*UserStats, error) {
	stats, err := s.appRepo.StatsByUserID(userID)
	if err != nil {
		return nil, err
	}
	out := &UserStats{
		TotalApplications:    stats.Total,
		ApprovedApplications: stats.Approved,
		RejectedApplications: stats.Rejected,
		TotalFundingSecured:  stats.FundingSecure,
	}
	if decided := stats.Approved + stats.Rejected; decided > 0 {
		out.SuccessRate = float64(stats.Approved) / float64(decided)
	}
	return out, nil
}

func validPassword(password string) bool {
	return len(password) >= 8 && len(password) <= maxPasswordBytes
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresIn: int64(s.jwtExpiration / time.Second),
		User:      user,
	}, nil
}
