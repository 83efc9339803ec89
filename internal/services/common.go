package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/homegrubhub/homegrubhub-be/internal/models"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(...interface{}) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func strPtr(s string) *string {
	return &s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// trimTo trims whitespace and cuts s to at most n characters.
func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > n {
		return string([]rune(s)[:n])
	}
	return s
}

// maxPage bounds the page number so offsets stay well inside int range.
const maxPage = 10000

// clampPage normalises pagination input: page runs from 1 to maxPage, size
// defaults to def and never exceeds max.
func clampPage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}

func today(now time.Time) string {
	return now.UTC().Format(models.DateLayout)
}

// parseDate validates a YYYY-MM-DD date, defaulting to today when empty.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		s = today(now)
	}
	return time.Parse(models.DateLayout, s)
}

// WeekStart returns the Monday on or before t, at midnight UTC.
func WeekStart(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// WeekLabel formats the week beginning at start, e.g. "Week of Jan 02 - Jan 08, 2006".
func WeekLabel(start time.Time) string {
	end := start.AddDate(0, 0, 6)
	return "Week of " + start.Format("Jan 02") + " - " + end.Format("Jan 02, 2006")
}
