package models

import "time"

// Ticket statuses.
const (
	TicketOpen        = "open"
	TicketInProgress  = "in_progress"
	TicketWaitingUser = "waiting_user"
	TicketResolved    = "resolved"
	TicketClosed      = "closed"
)

// SupportTicket is a help request raised by a user.
type SupportTicket struct {
	ID           string          `json:"id"`
	TicketNumber string          `json:"ticketNumber"`
	UserID       string          `json:"userId"`
	Subject      string          `json:"subject"`
	Message      string          `json:"message"`
	Category     string          `json:"category"`
	Priority     string          `json:"priority"`
	Status       string          `json:"status"`
	AssignedTo   *string         `json:"assignedTo"`
	Replies      []TicketMessage `json:"replies,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ResolvedAt   *time.Time      `json:"resolvedAt"`
}

// TicketMessage is a reply on a ticket.
type TicketMessage struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	UserID    string    `json:"userId"`
	IsStaff   bool      `json:"isStaff"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
