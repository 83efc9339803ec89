package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

var (
	ticketCategories = map[string]bool{"bug": true, "feature_request": true, "account": true, "billing": true, "general": true}
	ticketPriorities = map[string]bool{"low": true, "normal": true, "high": true, "urgent": true}
	ticketStatuses   = map[string]bool{
		models.TicketOpen: true, models.TicketInProgress: true, models.TicketWaitingUser: true,
		models.TicketResolved: true, models.TicketClosed: true,
	}
)

// TicketInput opens a support ticket.
type TicketInput struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Message  string `json:"message" validate:"required"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

// TicketUpdate is an admin change to a ticket. Nil fields are left alone.
type TicketUpdate struct {
	Status     *string `json:"status"`
	AssignedTo *string `json:"assignedTo"`
}

// SupportServiceProvider defines the interface for support ticket services.
type SupportServiceProvider interface {
	Create(ctx context.Context, viewer auth.Viewer, in TicketInput) (models.SupportTicket, error)
	ListMine(ctx context.Context, userID string) ([]models.SupportTicket, error)
	Get(ctx context.Context, viewer auth.Viewer, ref string) (models.SupportTicket, error)
	Reply(ctx context.Context, viewer auth.Viewer, ref, body string) (models.SupportTicket, error)
	ListAll(ctx context.Context, status string) ([]models.SupportTicket, error)
	Update(ctx context.Context, ref string, in TicketUpdate) (models.SupportTicket, error)
	OpenCount(ctx context.Context) (int, error)
}

// SupportService handles help desk tickets.
type SupportService struct {
	db           *sql.DB
	eventService EventServiceProvider
	now          func() time.Time
}

// NewSupportService creates a new SupportService.
func NewSupportService(db *sql.DB, eventService EventServiceProvider) *SupportService {
	return &SupportService{db: db, eventService: eventService, now: time.Now}
}

func (s *SupportService) ticketNumber() (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("ST-%s-%s", s.now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b))), nil
}

const ticketColumns = `id, ticket_number, user_id, subject, message, category, priority, status, assigned_to,
	created_at, updated_at, resolved_at`

func scanTicket(row scanner) (models.SupportTicket, error) {
	var t models.SupportTicket
	err := row.Scan(&t.ID, &t.TicketNumber, &t.UserID, &t.Subject, &t.Message, &t.Category, &t.Priority, &t.Status,
		&t.AssignedTo, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt)
	return t, err
}

func (s *SupportService) listTickets(ctx context.Context, query string, args ...interface{}) ([]models.SupportTicket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.SupportTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Create opens a ticket. Users on plans with priority support default to high priority.
func (s *SupportService) Create(ctx context.Context, viewer auth.Viewer, in TicketInput) (models.SupportTicket, error) {
	subject := strings.TrimSpace(in.Subject)
	message := strings.TrimSpace(in.Message)
	if subject == "" || utf8.RuneCountInString(subject) > 200 {
		return models.SupportTicket{}, apperr.Validation("Subject must be between 1 and 200 characters")
	}
	if message == "" {
		return models.SupportTicket{}, apperr.Validation("Message is required")
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = "general"
	}
	if !ticketCategories[category] {
		return models.SupportTicket{}, apperr.Validation("Invalid category: %s", category)
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = "normal"
		if viewer.Has("priority_support") {
			priority = "high"
		}
	}
	if !ticketPriorities[priority] {
		return models.SupportTicket{}, apperr.Validation("Invalid priority: %s", priority)
	}

	id := uuid.New().String()
	now := s.now().UTC()
	for attempt := 0; ; attempt++ {
		number, err := s.ticketNumber()
		if err != nil {
			return models.SupportTicket{}, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO support_tickets (id, ticket_number, user_id, subject, message, category, priority, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, number, viewer.UserID, subject, message, category, priority, models.TicketOpen, now, now)
		if err == nil {
			s.eventService.Record(ctx, "support.ticket", LevelInfo, fmt.Sprintf("Ticket %s opened: %s", number, subject), &viewer.UserID)
			break
		}
		if !isUniqueViolation(err) || attempt >= 5 {
			return models.SupportTicket{}, fmt.Errorf("failed to create ticket: %w", err)
		}
	}
	return s.load(ctx, id)
}

// ListMine returns the user's tickets, newest first.
func (s *SupportService) ListMine(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	return s.listTickets(ctx, "SELECT "+ticketColumns+" FROM support_tickets WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
}

// ListAll returns every ticket, optionally limited to one status.
func (s *SupportService) ListAll(ctx context.Context, status string) ([]models.SupportTicket, error) {
	if status == "" {
		return s.listTickets(ctx, "SELECT "+ticketColumns+" FROM support_tickets ORDER BY created_at DESC, rowid DESC")
	}
	if !ticketStatuses[status] {
		return nil, apperr.Validation("Invalid status: %s", status)
	}
	return s.listTickets(ctx, "SELECT "+ticketColumns+" FROM support_tickets WHERE status = ? ORDER BY created_at DESC, rowid DESC", status)
}

func (s *SupportService) load(ctx context.Context, ref string) (models.SupportTicket, error) {
	t, err := scanTicket(s.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM support_tickets WHERE id = ? OR ticket_number = ?", ref, ref))
	if isNoRows(err) {
		return t, apperr.NotFound("ticket", ref)
	}
	if err != nil {
		return t, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, ticket_id, user_id, is_staff, body, created_at FROM ticket_messages WHERE ticket_id = ? ORDER BY created_at, rowid", t.ID)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	t.Replies = []models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.UserID, &m.IsStaff, &m.Body, &m.CreatedAt); err != nil {
			return t, err
		}
		t.Replies = append(t.Replies, m)
	}
	return t, rows.Err()
}

// Get returns a ticket by id or ticket number with its replies. Only the owner
// and admins can see it.
func (s *SupportService) Get(ctx context.Context, viewer auth.Viewer, ref string) (models.SupportTicket, error) {
	t, err := s.load(ctx, ref)
	if err != nil {
		return t, err
	}
	if t.UserID != viewer.UserID && !viewer.IsAdmin {
		return models.SupportTicket{}, apperr.NotFound("ticket", ref)
	}
	return t, nil
}

// Reply adds a message to the ticket. Staff replies to an open ticket wait on
// the user; a user reply reopens a ticket that was waiting, resolved or closed.
func (s *SupportService) Reply(ctx context.Context, viewer auth.Viewer, ref, body string) (models.SupportTicket, error) {
	t, err := s.Get(ctx, viewer, ref)
	if err != nil {
		return t, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return t, apperr.Validation("Reply cannot be empty")
	}

	staff := viewer.IsAdmin && viewer.UserID != t.UserID
	status := t.Status
	resolvedAt := t.ResolvedAt
	switch {
	case staff && t.Status == models.TicketOpen:
		status = models.TicketWaitingUser
	case !staff && (t.Status == models.TicketWaitingUser || t.Status == models.TicketResolved || t.Status == models.TicketClosed):
		status = models.TicketOpen
		resolvedAt = nil
	}

	now := s.now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, "INSERT INTO ticket_messages (id, ticket_id, user_id, is_staff, body, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.New().String(), t.ID, viewer.UserID, staff, body, now)
	if err != nil {
		return t, fmt.Errorf("failed to add reply: %w", err)
	}
	_, err = tx.ExecContext(ctx, "UPDATE support_tickets SET status = ?, resolved_at = ?, updated_at = ? WHERE id = ?", status, resolvedAt, now, t.ID)
	if err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return s.load(ctx, t.ID)
}

// Update changes a ticket's status or assignee. Resolving stamps resolved_at.
func (s *SupportService) Update(ctx context.Context, ref string, in TicketUpdate) (models.SupportTicket, error) {
	t, err := s.load(ctx, ref)
	if err != nil {
		return t, err
	}
	if in.Status != nil {
		if !ticketStatuses[*in.Status] {
			return t, apperr.Validation("Invalid status: %s", *in.Status)
		}
		if *in.Status == models.TicketResolved && t.Status != models.TicketResolved {
			now := s.now().UTC()
			t.ResolvedAt = &now
		} else if *in.Status == models.TicketOpen || *in.Status == models.TicketInProgress {
			t.ResolvedAt = nil
		}
		t.Status = *in.Status
	}
	if in.AssignedTo != nil {
		t.AssignedTo = nullIfEmpty(*in.AssignedTo)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE support_tickets SET status = ?, assigned_to = ?, resolved_at = ?, updated_at = ? WHERE id = ?",
		t.Status, t.AssignedTo, t.ResolvedAt, s.now().UTC(), t.ID)
	if err != nil {
		return t, fmt.Errorf("failed to update ticket: %w", err)
	}
	return s.load(ctx, t.ID)
}

// OpenCount counts tickets that still need attention.
func (s *SupportService) OpenCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM support_tickets WHERE status IN ('open', 'in_progress')").Scan(&n)
	return n, err
}
