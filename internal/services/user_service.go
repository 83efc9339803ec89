package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/postcode"
	"github.com/homegrubhub/homegrubhub-be/internal/tiers"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, username, email, password string) (models.User, error)
	UpdateProfile(ctx context.Context, id, displayName, bio, pc string) (models.User, error)
	UpdatePassword(ctx context.Context, id, currentPassword, newPassword string) error
	UpdateSettings(ctx context.Context, id string, settings models.UserSettings) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetTier(ctx context.Context, userID string) (string, bool, error)
	GetPublicProfile(ctx context.Context, id, viewerID string) (models.PublicProfile, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]models.User, int, error)
	SetTier(ctx context.Context, id, tier string) (models.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db           *sql.DB
	eventService EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, eventService EventServiceProvider) *UserService {
	return &UserService{db: db, eventService: eventService}
}

const userColumns = "id, username, email, password_hash, display_name, bio, postcode, tier, is_admin, settings_json, created_at"

func scanUser(row scanner) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.Bio, &user.Postcode, &user.Tier, &user.IsAdmin, &user.SettingsJSON, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.PrepareForAPI()
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if isNoRows(err) {
			return models.User{}, apperr.NotFound("user", id)
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// getUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) getUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(strings.TrimSpace(email))))
}

// CreateUser creates a new free-tier user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if utf8.RuneCountInString(username) < 3 || utf8.RuneCountInString(username) > 50 {
		return models.User{}, apperr.Validation("Username must be between 3 and 50 characters")
	}
	if len(password) < 8 {
		return models.User{}, apperr.Validation("Password must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		DisplayName:  username,
		Tier:         tiers.Free,
		Settings:     models.DefaultSettings(),
		CreatedAt:    time.Now().UTC(),
	}
	user.PrepareForDB()

	stmt, err := s.db.PrepareContext(ctx, `INSERT INTO users (id, username, email, password_hash, display_name, tier, settings_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, user.ID, user.Username, user.Email, user.PasswordHash, user.DisplayName, user.Tier, user.SettingsJSON, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, apperr.Conflict("Username or email already registered")
		}
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.eventService.Record(ctx, "user.register", LevelInfo, fmt.Sprintf("User '%s' registered.", user.Username), &user.ID)

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile updates a user's display name, bio and postcode. The postcode
// is stored normalised; an empty postcode clears it.
func (s *UserService) UpdateProfile(ctx context.Context, id, displayName, bio, pc string) (models.User, error) {
	pc = strings.TrimSpace(pc)
	if pc != "" {
		if !postcode.Valid(pc) {
			return models.User{}, apperr.Validation("Invalid UK postcode")
		}
		pc = postcode.Normalize(pc)
	}
	if utf8.RuneCountInString(displayName) > 100 {
		return models.User{}, apperr.Validation("Display name must be at most 100 characters")
	}

	res, err := s.db.ExecContext(ctx, "UPDATE users SET display_name = ?, bio = ?, postcode = ? WHERE id = ?", strings.TrimSpace(displayName), bio, pc, id)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, apperr.NotFound("user", id)
	}
	return s.GetUserByID(ctx, id)
}

// UpdatePassword verifies the current password, then hashes and sets a new password for a user.
func (s *UserService) UpdatePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", id).Scan(&hash)
	if err != nil {
		if isNoRows(err) {
			return apperr.NotFound("user", id)
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)); err != nil {
		return apperr.Validation("Current password is incorrect")
	}
	if len(newPassword) < 8 {
		return apperr.Validation("Password must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hashedPassword), id)
	return err
}

// UpdateSettings replaces a user's preferences.
func (s *UserService) UpdateSettings(ctx context.Context, id string, settings models.UserSettings) (models.User, error) {
	user := models.User{Settings: settings}
	user.PrepareForDB()
	res, err := s.db.ExecContext(ctx, "UPDATE users SET settings_json = ? WHERE id = ?", user.SettingsJSON, id)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, apperr.NotFound("user", id)
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes a user and everything they own.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user", id)
	}
	s.eventService.Record(ctx, "user.delete", LevelWarn, fmt.Sprintf("User %s deleted their account.", id), nil)
	return nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.getUserByEmail(ctx, email)
	if err != nil {
		if isNoRows(err) {
			return models.User{}, apperr.Unauthorized("Invalid credentials")
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperr.Unauthorized("Invalid credentials")
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetTier returns the user's current plan and admin flag.
func (s *UserService) GetTier(ctx context.Context, userID string) (string, bool, error) {
	var tier string
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, "SELECT tier, is_admin FROM users WHERE id = ?", userID).Scan(&tier, &isAdmin)
	if err != nil {
		if isNoRows(err) {
			return "", false, apperr.Unauthorized("Account no longer exists")
		}
		return "", false, err
	}
	return tiers.Normalize(tier), isAdmin, nil
}

// GetPublicProfile returns what other users can see about an account.
func (s *UserService) GetPublicProfile(ctx context.Context, id, viewerID string) (models.PublicProfile, error) {
	var p models.PublicProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.bio, u.created_at,
			(SELECT COUNT(*) FROM follows WHERE followed_id = u.id),
			(SELECT COUNT(*) FROM follows WHERE follower_id = u.id),
			(SELECT COUNT(*) FROM recipes WHERE user_id = u.id AND is_private = 0 AND is_approved = 1),
			(SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = u.id)
		FROM users u WHERE u.id = ?`, viewerID, id).Scan(
		&p.ID, &p.Username, &p.DisplayName, &p.Bio, &p.CreatedAt,
		&p.Followers, &p.Following, &p.PublicRecipes, &p.IsFollowedByMe)
	if err != nil {
		if isNoRows(err) {
			return models.PublicProfile{}, apperr.NotFound("user", id)
		}
		return models.PublicProfile{}, err
	}
	return p, nil
}

// ListUsers pages through all accounts, newest first.
func (s *UserService) ListUsers(ctx context.Context, page, pageSize int) ([]models.User, int, error) {
	page, pageSize = clampPage(page, pageSize, 20, 100)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// SetTier moves a user to another plan.
func (s *UserService) SetTier(ctx context.Context, id, tier string) (models.User, error) {
	if !tiers.Valid(tier) {
		return models.User{}, apperr.Validation("Unknown tier %q", tier)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET tier = ? WHERE id = ?", tier, id)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to set tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, apperr.NotFound("user", id)
	}
	s.eventService.Record(ctx, "user.tier", LevelInfo, fmt.Sprintf("User %s moved to the %s plan.", id, tier), &id)
	return s.GetUserByID(ctx, id)
}

// SetAdmin grants or revokes admin rights.
func (s *UserService) SetAdmin(ctx context.Context, id string, isAdmin bool) (models.User, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET is_admin = ? WHERE id = ?", isAdmin, id)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to set admin flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, apperr.NotFound("user", id)
	}
	s.eventService.Record(ctx, "user.admin", LevelWarn, fmt.Sprintf("Admin rights for user %s set to %t.", id, isAdmin), &id)
	return s.GetUserByID(ctx, id)
}
