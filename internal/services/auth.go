package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/classtask/taskmaster/backend/internal/config"
	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/classtask/taskmaster/backend/internal/utils"
	"gorm.io/gorm"
)

// Sentinel errors let handlers map failures to the right status without
// parsing messages.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserDisabled       = errors.New("account is disabled")
	ErrProfileMissing     = errors.New("profile not found for this account")
	ErrInvalidRole        = errors.New("role must be teacher or student")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapCfg *config.LDAPConfig) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(ldapCfg),
		jwtConfig:   jwtCfg,
	}
}

type RegisterRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Role            string `json:"role" binding:"required"`
}

// RegisterResult reports what the registration actually achieved. The
// identity can exist while the profile insert failed; callers must be
// able to see that half-state instead of a fake success or failure.
type RegisterResult struct {
	User           *models.User    `json:"user"`
	Profile        *models.Profile `json:"profile,omitempty"`
	ProfilePending bool            `json:"profile_pending"`
	ProfileError   string          `json:"profile_error,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	Profile         *models.Profile
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

// Register creates the identity first, then the profile. A profile
// failure after the identity committed is reported, not rolled back.
func (s *AuthService) Register(req *RegisterRequest) (*RegisterResult, error) {
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if req.Role != models.RoleTeacher && req.Role != models.RoleStudent {
		return nil, ErrInvalidRole
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    email,
		Password: hashed,
		AuthType: "local",
		IsActive: true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	result := &RegisterResult{User: &user}

	profile := models.Profile{
		ID:    user.ID,
		Name:  req.Name,
		Email: email,
		Role:  req.Role,
	}
	if err := s.db.Create(&profile).Error; err != nil {
		// Identity exists but is not yet usable. The caller decides
		// whether to retry profile creation or escalate.
		result.ProfilePending = true
		result.ProfileError = err.Error()
		LogWarning("Auth", "Register", "profile creation failed after identity commit: "+err.Error(),
			&user.ID, "", "", nil)
		return result, nil
	}

	result.Profile = &profile
	return result, nil
}

// Login authenticates a user and opens a session: a JWT access token
// plus a persisted, rotated refresh token. A failed login changes no
// stored session state.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user *models.User
	var err error

	if req.AuthType == "" {
		req.AuthType = "local"
	}

	switch req.AuthType {
	case "local":
		user, err = s.localAuth(req.Email, req.Password)
	case "ldap":
		user, err = s.ldapAuth(req.Email, req.Password)
	default:
		return nil, errors.New("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	profile, err := s.profileFor(user.ID)
	if err != nil {
		return nil, err
	}

	token, err := utils.GenerateToken(user.ID, user.Email, profile.Role, s.jwtConfig.ExpireHour)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := time.Now().Add(time.Duration(s.jwtConfig.RefreshExpireHours) * time.Hour)
	refreshRecord := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: refreshHash,
		ExpiresAt: refreshExpireAt,
	}
	if clientIP != "" {
		refreshRecord.CreatedByIP = clientIP
	}
	if userAgent != "" {
		refreshRecord.UserAgent = userAgent
	}
	if err := s.db.Create(&refreshRecord).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(user)

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  time.Now().Add(time.Duration(s.jwtConfig.ExpireHour) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		Profile:         profile,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new access/refresh pair is issued atomically.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token required")
	}

	hash := hashRefreshToken(refreshToken)

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid refresh token")
		}
		return nil, err
	}

	if stored.RevokedAt != nil {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, errors.New("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	profile, err := s.profileFor(user.ID)
	if err != nil {
		return nil, err
	}

	newAccessToken, err := utils.GenerateToken(user.ID, user.Email, profile.Role, s.jwtConfig.ExpireHour)
	if err != nil {
		return nil, err
	}

	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: newRefreshHash,
		ExpiresAt: now.Add(time.Duration(s.jwtConfig.RefreshExpireHours) * time.Hour),
	}
	if clientIP != "" {
		newRefresh.CreatedByIP = clientIP
	}
	if userAgent != "" {
		newRefresh.UserAgent = userAgent
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		if err := tx.Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": newRefresh.ID,
		}).Error; err != nil {
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  time.Now().Add(time.Duration(s.jwtConfig.ExpireHour) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

// RevokeRefreshToken invalidates a refresh token server-side. A network
// failure here must not keep the client logged in; callers clear local
// state regardless.
func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	hash := hashRefreshToken(refreshToken)
	now := time.Now()
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", now).Error
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	tokenHash = hashRefreshToken(token)
	return token, tokenHash, nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND auth_type = ?", strings.ToLower(strings.TrimSpace(email)), "local").
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// ldapAuth authenticates against the school directory and provisions a
// local identity plus a student profile on first login.
func (s *AuthService) ldapAuth(email, password string) (*models.User, error) {
	dirUser, err := s.ldapService.Authenticate(email, password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.Where("email = ? AND auth_type = ?", strings.ToLower(dirUser.Email), "ldap").First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Email:    strings.ToLower(dirUser.Email),
			AuthType: "ldap",
			IsActive: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		profile := models.Profile{
			ID:    user.ID,
			Name:  dirUser.Name,
			Email: user.Email,
			Role:  models.RoleStudent,
		}
		if err := s.db.Create(&profile).Error; err != nil {
			LogWarning("Auth", "Login", "profile creation failed for directory user: "+err.Error(),
				&user.ID, "", "", nil)
		}
	} else if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	return &user, nil
}

func (s *AuthService) profileFor(userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.First(&profile, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfileByID resolves the session identity into the application
// profile. Used for session restoration on startup.
func (s *AuthService) GetProfileByID(id uint) (*models.Profile, error) {
	return s.profileFor(id)
}

// UpdateProfileRequest carries profile edits. Role is immutable after
// registration and deliberately absent here.
type UpdateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func (s *AuthService) UpdateProfile(userID uint, req *UpdateProfileRequest) (*models.Profile, error) {
	profile, err := s.profileFor(userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.AvatarURL != "" {
		updates["avatar_url"] = req.AvatarURL
	}
	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.db.Model(profile).Updates(updates).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return errors.New("user not found")
	}

	if user.AuthType != "local" {
		return errors.New("directory accounts cannot change password here")
	}

	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return errors.New("incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashed
	return s.db.Save(&user).Error
}

// ListStudents returns every student profile, for group assembly.
func (s *AuthService) ListStudents() ([]models.Profile, error) {
	var profiles []models.Profile
	if err := s.db.Where("role = ?", models.RoleStudent).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}
