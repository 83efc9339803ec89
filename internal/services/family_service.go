package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

const (
	familyCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	familyCodeLength   = 8
	familyMaxMembers   = 6
	familyMessageLimit = 50
)

var familyRoles = map[string]bool{models.RoleAdmin: true, models.RoleParent: true, models.RoleTeen: true, models.RoleChild: true}

// Broadcaster delivers realtime updates to everyone subscribed to a key.
type Broadcaster interface {
	BroadcastTo(key string, message []byte)
}

// FamilyKey is the realtime subscription key for a family.
func FamilyKey(familyID string) string {
	return "family:" + familyID
}

// FamilyItemInput is a request to add something to the family list.
type FamilyItemInput struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Unit     string  `json:"unit" validate:"max=20"`
}

// FamilyServiceProvider defines the interface for family account services.
type FamilyServiceProvider interface {
	Create(ctx context.Context, viewer auth.Viewer, name string) (models.FamilyAccount, error)
	Join(ctx context.Context, userID, code, ageGroup string) (models.FamilyAccount, error)
	Leave(ctx context.Context, userID string) error
	Mine(ctx context.Context, userID string) (models.FamilyAccount, error)
	Membership(ctx context.Context, userID string) (models.FamilyMember, error)
	UpdateRole(ctx context.Context, userID, memberUserID, role string) (models.FamilyMember, error)
	RemoveMember(ctx context.Context, userID, memberUserID string) error
	ListItems(ctx context.Context, userID string) ([]models.FamilyShoppingItem, error)
	AddItem(ctx context.Context, userID string, in FamilyItemInput) (models.FamilyShoppingItem, error)
	ApproveItem(ctx context.Context, userID, itemID string) (models.FamilyShoppingItem, error)
	TogglePurchased(ctx context.Context, userID, itemID string) (models.FamilyShoppingItem, error)
	DeleteItem(ctx context.Context, userID, itemID string) error
	PostMessage(ctx context.Context, userID, body string) (models.FamilyMessage, error)
	Messages(ctx context.Context, userID string) ([]models.FamilyMessage, error)
}

// FamilyService manages shared family accounts, their list and message board.
type FamilyService struct {
	db           *sql.DB
	eventService EventServiceProvider
	broadcaster  Broadcaster
	now          func() time.Time
}

// NewFamilyService creates a new FamilyService. A nil broadcaster disables realtime updates.
func NewFamilyService(db *sql.DB, eventService EventServiceProvider, broadcaster Broadcaster) *FamilyService {
	return &FamilyService{db: db, eventService: eventService, broadcaster: broadcaster, now: time.Now}
}

func (s *FamilyService) notify(familyID, action string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	msg, err := websocket.NewMessage(action, payload)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode family update")
		return
	}
	s.broadcaster.BroadcastTo(FamilyKey(familyID), msg)
}

func generateFamilyCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(familyCodeAlphabet)))
	for i := 0; i < familyCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(familyCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

const memberSelect = `
	SELECT m.id, m.family_id, m.user_id, u.username, u.display_name, m.role, m.age_group, m.joined_at
	FROM family_members m JOIN users u ON u.id = m.user_id`

func scanMember(row scanner) (models.FamilyMember, error) {
	var m models.FamilyMember
	err := row.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Username, &m.DisplayName, &m.Role, &m.AgeGroup, &m.JoinedAt)
	return m, err
}

// Membership returns the user's family membership, or NOT_FOUND when they have none.
func (s *FamilyService) Membership(ctx context.Context, userID string) (models.FamilyMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, memberSelect+" WHERE m.user_id = ?", userID))
	if isNoRows(err) {
		return m, apperr.New(apperr.CodeNotFound, "You are not a member of a family")
	}
	return m, err
}

func (s *FamilyService) manager(ctx context.Context, userID string) (models.FamilyMember, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return m, err
	}
	if !m.CanManage() {
		return m, apperr.Forbidden("Only family admins and parents can do that")
	}
	return m, nil
}

func (s *FamilyService) getFamily(ctx context.Context, familyID string) (models.FamilyAccount, error) {
	var f models.FamilyAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, primary_user_id, family_name, family_code, max_members, created_at FROM family_accounts WHERE id = ?`, familyID).
		Scan(&f.ID, &f.PrimaryUserID, &f.FamilyName, &f.FamilyCode, &f.MaxMembers, &f.CreatedAt)
	if isNoRows(err) {
		return f, apperr.NotFound("family", familyID)
	}
	if err != nil {
		return f, err
	}
	rows, err := s.db.QueryContext(ctx, memberSelect+" WHERE m.family_id = ? ORDER BY m.joined_at, m.rowid", familyID)
	if err != nil {
		return f, err
	}
	defer rows.Close()
	f.Members = []models.FamilyMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return f, err
		}
		f.Members = append(f.Members, m)
	}
	return f, rows.Err()
}

// Create starts a family with the viewer as its primary user and admin.
func (s *FamilyService) Create(ctx context.Context, viewer auth.Viewer, name string) (models.FamilyAccount, error) {
	if !viewer.Has("multi_user") {
		return models.FamilyAccount{}, apperr.FeatureLocked("multi_user")
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return models.FamilyAccount{}, apperr.Validation("Family name must be between 1 and 100 characters")
	}
	if _, err := s.Membership(ctx, viewer.UserID); err == nil {
		return models.FamilyAccount{}, apperr.Conflict("You already belong to a family")
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return models.FamilyAccount{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.FamilyAccount{}, err
	}
	defer tx.Rollback()

	familyID := uuid.New().String()
	now := s.now().UTC()
	for attempt := 0; ; attempt++ {
		code, err := generateFamilyCode()
		if err != nil {
			return models.FamilyAccount{}, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO family_accounts (id, primary_user_id, family_name, family_code, max_members, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, familyID, viewer.UserID, name, code, familyMaxMembers, now)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) || attempt >= 5 {
			return models.FamilyAccount{}, fmt.Errorf("failed to create family: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, "INSERT INTO family_members (id, family_id, user_id, role, age_group, joined_at) VALUES (?, ?, ?, ?, 'adult', ?)",
		uuid.New().String(), familyID, viewer.UserID, models.RoleAdmin, now)
	if err != nil {
		return models.FamilyAccount{}, fmt.Errorf("failed to add family admin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.FamilyAccount{}, err
	}
	s.eventService.Record(ctx, "family.create", LevelInfo, fmt.Sprintf("Family '%s' created", name), &viewer.UserID)
	return s.getFamily(ctx, familyID)
}

// Join adds the user to the family with the given code. The age group picks
// the role: child, teen, or parent for adults.
func (s *FamilyService) Join(ctx context.Context, userID, code, ageGroup string) (models.FamilyAccount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.FamilyAccount{}, apperr.Validation("Family code is required")
	}
	var familyID string
	var maxMembers int
	err := s.db.QueryRowContext(ctx, "SELECT id, max_members FROM family_accounts WHERE family_code = ?", code).Scan(&familyID, &maxMembers)
	if isNoRows(err) {
		return models.FamilyAccount{}, apperr.New(apperr.CodeNotFound, "Invalid family code")
	}
	if err != nil {
		return models.FamilyAccount{}, err
	}
	if _, err := s.Membership(ctx, userID); err == nil {
		return models.FamilyAccount{}, apperr.Conflict("You already belong to a family")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM family_members WHERE family_id = ?", familyID).Scan(&count); err != nil {
		return models.FamilyAccount{}, err
	}
	if count >= maxMembers {
		return models.FamilyAccount{}, apperr.Conflict("This family account is full")
	}

	role := models.RoleParent
	switch ageGroup {
	case "child":
		role = models.RoleChild
	case "teen":
		role = models.RoleTeen
	default:
		ageGroup = "adult"
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO family_members (id, family_id, user_id, role, age_group, joined_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.New().String(), familyID, userID, role, ageGroup, s.now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.FamilyAccount{}, apperr.Conflict("You already belong to a family")
		}
		return models.FamilyAccount{}, fmt.Errorf("failed to join family: %w", err)
	}
	s.notify(familyID, "member_joined", map[string]string{"userId": userID, "role": role})
	return s.getFamily(ctx, familyID)
}

// Leave removes the user from their family. The primary user may only leave
// once everyone else has gone, which also dissolves the family.
func (s *FamilyService) Leave(ctx context.Context, userID string) error {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return err
	}
	family, err := s.getFamily(ctx, m.FamilyID)
	if err != nil {
		return err
	}
	if family.PrimaryUserID == userID {
		if len(family.Members) > 1 {
			return apperr.Validation("Remove the other members before leaving the family you created")
		}
		_, err = s.db.ExecContext(ctx, "DELETE FROM family_accounts WHERE id = ?", family.ID)
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM family_members WHERE id = ?", m.ID); err != nil {
		return err
	}
	s.notify(family.ID, "member_left", map[string]string{"userId": userID})
	return nil
}

// Mine returns the user's family with its members.
func (s *FamilyService) Mine(ctx context.Context, userID string) (models.FamilyAccount, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return models.FamilyAccount{}, err
	}
	return s.getFamily(ctx, m.FamilyID)
}

func (s *FamilyService) memberOf(ctx context.Context, familyID, memberUserID string) (models.FamilyMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, memberSelect+" WHERE m.family_id = ? AND m.user_id = ?", familyID, memberUserID))
	if isNoRows(err) {
		return m, apperr.NotFound("family member", memberUserID)
	}
	return m, err
}

// UpdateRole changes another member's role. Only admins may do this.
func (s *FamilyService) UpdateRole(ctx context.Context, userID, memberUserID, role string) (models.FamilyMember, error) {
	me, err := s.Membership(ctx, userID)
	if err != nil {
		return me, err
	}
	if me.Role != models.RoleAdmin {
		return me, apperr.Forbidden("Only family admins can change roles")
	}
	if !familyRoles[role] {
		return me, apperr.Validation("Role must be admin, parent, teen or child")
	}
	target, err := s.memberOf(ctx, me.FamilyID, memberUserID)
	if err != nil {
		return target, err
	}
	if target.UserID == userID {
		return target, apperr.Validation("You cannot change your own role")
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE family_members SET role = ? WHERE id = ?", role, target.ID); err != nil {
		return target, err
	}
	s.notify(me.FamilyID, "member_updated", map[string]string{"userId": memberUserID, "role": role})
	return s.memberOf(ctx, me.FamilyID, memberUserID)
}

// RemoveMember removes someone else from the admin's family.
func (s *FamilyService) RemoveMember(ctx context.Context, userID, memberUserID string) error {
	me, err := s.Membership(ctx, userID)
	if err != nil {
		return err
	}
	if me.Role != models.RoleAdmin {
		return apperr.Forbidden("Only family admins can remove members")
	}
	if memberUserID == userID {
		return apperr.Validation("Use leave to remove yourself")
	}
	target, err := s.memberOf(ctx, me.FamilyID, memberUserID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM family_members WHERE id = ?", target.ID); err != nil {
		return err
	}
	s.notify(me.FamilyID, "member_left", map[string]string{"userId": memberUserID})
	return nil
}

const familyItemColumns = `id, family_id, name, quantity, unit, requested_by, is_approved, approved_by,
	is_purchased, purchased_by, purchased_at, created_at`

func scanFamilyItem(row scanner) (models.FamilyShoppingItem, error) {
	var i models.FamilyShoppingItem
	err := row.Scan(&i.ID, &i.FamilyID, &i.Name, &i.Quantity, &i.Unit, &i.RequestedBy, &i.IsApproved, &i.ApprovedBy,
		&i.IsPurchased, &i.PurchasedBy, &i.PurchasedAt, &i.CreatedAt)
	return i, err
}

func (s *FamilyService) getItem(ctx context.Context, familyID, itemID string) (models.FamilyShoppingItem, error) {
	item, err := scanFamilyItem(s.db.QueryRowContext(ctx, "SELECT "+familyItemColumns+" FROM family_shopping_items WHERE id = ? AND family_id = ?", itemID, familyID))
	if isNoRows(err) {
		return item, apperr.NotFound("family shopping item", itemID)
	}
	return item, err
}

// ListItems returns the family list, unpurchased first.
func (s *FamilyService) ListItems(ctx context.Context, userID string) ([]models.FamilyShoppingItem, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+familyItemColumns+" FROM family_shopping_items WHERE family_id = ? ORDER BY is_purchased, created_at, rowid", m.FamilyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.FamilyShoppingItem{}
	for rows.Next() {
		item, err := scanFamilyItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddItem puts an item on the family list. Items added by children wait for approval.
func (s *FamilyService) AddItem(ctx context.Context, userID string, in FamilyItemInput) (models.FamilyShoppingItem, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return models.FamilyShoppingItem{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.FamilyShoppingItem{}, apperr.Validation("Item name is required")
	}
	if in.Quantity < 0 {
		return models.FamilyShoppingItem{}, apperr.Validation("Quantity must be positive")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Unit == "" {
		in.Unit = "units"
	}
	approved := m.Role != models.RoleChild
	var approvedBy *string
	if approved {
		approvedBy = &userID
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO family_shopping_items (id, family_id, name, quantity, unit, requested_by, is_approved, approved_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.FamilyID, name, in.Quantity, in.Unit, userID, approved, approvedBy, s.now().UTC())
	if err != nil {
		return models.FamilyShoppingItem{}, fmt.Errorf("failed to add family item: %w", err)
	}
	item, err := s.getItem(ctx, m.FamilyID, id)
	if err == nil {
		s.notify(m.FamilyID, "item_added", item)
	}
	return item, err
}

// ApproveItem approves a pending item. Admins and parents only.
func (s *FamilyService) ApproveItem(ctx context.Context, userID, itemID string) (models.FamilyShoppingItem, error) {
	m, err := s.manager(ctx, userID)
	if err != nil {
		return models.FamilyShoppingItem{}, err
	}
	if _, err := s.getItem(ctx, m.FamilyID, itemID); err != nil {
		return models.FamilyShoppingItem{}, err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE family_shopping_items SET is_approved = 1, approved_by = ? WHERE id = ?", userID, itemID); err != nil {
		return models.FamilyShoppingItem{}, err
	}
	item, err := s.getItem(ctx, m.FamilyID, itemID)
	if err == nil {
		s.notify(m.FamilyID, "item_approved", item)
	}
	return item, err
}

// TogglePurchased flips an approved item's purchased state.
func (s *FamilyService) TogglePurchased(ctx context.Context, userID, itemID string) (models.FamilyShoppingItem, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return models.FamilyShoppingItem{}, err
	}
	item, err := s.getItem(ctx, m.FamilyID, itemID)
	if err != nil {
		return item, err
	}
	if !item.IsApproved {
		return item, apperr.Validation("This item is waiting for approval")
	}
	if item.IsPurchased {
		_, err = s.db.ExecContext(ctx, "UPDATE family_shopping_items SET is_purchased = 0, purchased_by = NULL, purchased_at = NULL WHERE id = ?", itemID)
	} else {
		_, err = s.db.ExecContext(ctx, "UPDATE family_shopping_items SET is_purchased = 1, purchased_by = ?, purchased_at = ? WHERE id = ?", userID, s.now().UTC(), itemID)
	}
	if err != nil {
		return item, err
	}
	item, err = s.getItem(ctx, m.FamilyID, itemID)
	if err == nil {
		s.notify(m.FamilyID, "item_updated", item)
	}
	return item, err
}

// DeleteItem removes an item. Managers may delete anything, others only their own requests.
func (s *FamilyService) DeleteItem(ctx context.Context, userID, itemID string) error {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return err
	}
	item, err := s.getItem(ctx, m.FamilyID, itemID)
	if err != nil {
		return err
	}
	if !m.CanManage() && item.RequestedBy != userID {
		return apperr.Forbidden("You can only remove items you added")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM family_shopping_items WHERE id = ?", itemID); err != nil {
		return err
	}
	s.notify(m.FamilyID, "item_deleted", map[string]string{"id": itemID})
	return nil
}

// PostMessage adds a note to the family board.
func (s *FamilyService) PostMessage(ctx context.Context, userID, body string) (models.FamilyMessage, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return models.FamilyMessage{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > 1000 {
		return models.FamilyMessage{}, apperr.Validation("Message must be between 1 and 1000 characters")
	}
	msg := models.FamilyMessage{
		ID: uuid.New().String(), FamilyID: m.FamilyID, UserID: userID, Username: m.Username, Body: body, CreatedAt: s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO family_messages (id, family_id, user_id, body, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.FamilyID, userID, body, msg.CreatedAt)
	if err != nil {
		return msg, fmt.Errorf("failed to post message: %w", err)
	}
	s.notify(m.FamilyID, "message", msg)
	return msg, nil
}

// Messages returns the 50 most recent messages, oldest first.
func (s *FamilyService) Messages(ctx context.Context, userID string) ([]models.FamilyMessage, error) {
	m, err := s.Membership(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family_id, user_id, username, body, created_at FROM (
			SELECT fm.id, fm.family_id, fm.user_id, u.username, fm.body, fm.created_at, fm.rowid AS seq
			FROM family_messages fm JOIN users u ON u.id = fm.user_id
			WHERE fm.family_id = ? ORDER BY fm.created_at DESC, fm.rowid DESC LIMIT ?
		) ORDER BY created_at, seq`, m.FamilyID, familyMessageLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.FamilyMessage{}
	for rows.Next() {
		var msg models.FamilyMessage
		if err := rows.Scan(&msg.ID, &msg.FamilyID, &msg.UserID, &msg.Username, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
