// Package reminder emails the people responsible for sections whose reminder
// date has passed. Each reminder goes out once per section and date.
package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/section"
	"arp/api/internal/store"
)

// Store is the persistence the runner reads sections from and records sends in.
type Store interface {
	ListOwners(ctx context.Context) ([]string, error)
	LoadSectionsRaw(ctx context.Context, ownerID string) (json.RawMessage, error)
	ReminderSent(ctx context.Context, ownerID, sectionID string, date time.Time) (bool, error)
	MarkReminderSent(ctx context.Context, entry store.ReminderEntry) error
}

type Sender interface {
	SendHTML(to []string, subject, text, html string) error
}

// Report summarizes one run.
type Report struct {
	Owners  int `json:"owners"`
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Runner struct {
	store    Store
	sender   Sender
	fallback string
	now      func() time.Time
	log      zerolog.Logger
}

// NewRunner returns a runner. fallback receives reminders for sections whose
// assignee is not an email address; when empty those reminders are skipped.
func NewRunner(s Store, sender Sender, fallback string, logger zerolog.Logger) *Runner {
	return &Runner{
		store:    s,
		sender:   sender,
		fallback: strings.TrimSpace(fallback),
		now:      time.Now,
		log:      logger.With().Str("component", "reminder").Logger(),
	}
}

// Run sends every due reminder that has not been sent yet. A failure for one
// section is counted and logged; the run continues with the next.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	owners, err := r.store.ListOwners(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list owners: %w", err)
	}

	now := r.now()
	report := Report{Owners: len(owners)}
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		raw, err := r.store.LoadSectionsRaw(ctx, owner)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			r.log.Warn().Err(err).Str("owner", owner).Msg("load sections failed")
			report.Failed++
			continue
		}
		for _, sec := range section.DueReminders(section.NormalizeListJSON(raw), now) {
			report.Due++
			r.remind(ctx, owner, sec, &report)
		}
	}
	r.log.Info().
		Int("owners", report.Owners).
		Int("due", report.Due).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("reminder run finished")
	return report, nil
}

func (r *Runner) remind(ctx context.Context, owner string, sec section.Section, report *Report) {
	date := *sec.ReminderDate
	logger := r.log.With().Str("owner", owner).Str("section", sec.ID).Logger()

	sent, err := r.store.ReminderSent(ctx, owner, sec.ID, date)
	if err != nil {
		logger.Warn().Err(err).Msg("check reminder log failed")
		report.Failed++
		return
	}
	if sent {
		report.Skipped++
		return
	}
	to := r.recipient(sec)
	if to == "" {
		logger.Debug().Str("assignee", sec.AssignedTo).Msg("no reminder recipient")
		report.Skipped++
		return
	}

	subject, text, html, err := Compose(sec)
	if err != nil {
		logger.Warn().Err(err).Msg("compose reminder failed")
		report.Failed++
		return
	}
	if err := r.sender.SendHTML([]string{to}, subject, text, html); err != nil {
		logger.Warn().Err(err).Msg("send reminder failed")
		report.Failed++
		return
	}
	entry := store.ReminderEntry{OwnerID: owner, SectionID: sec.ID, ReminderDate: date, Recipient: to}
	if err := r.store.MarkReminderSent(ctx, entry); err != nil {
		logger.Error().Err(err).Msg("record reminder failed")
		report.Failed++
		return
	}
	report.Sent++
}

func (r *Runner) recipient(sec section.Section) string {
	if addr, err := mail.ParseAddress(strings.TrimSpace(sec.AssignedTo)); err == nil {
		return addr.Address
	}
	return r.fallback
}

type templateData struct {
	Title    string
	Status   string
	Priority string
	Progress int
	DueDate  string
	Summary  string
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Reminder: {{.Title}}</title></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto;">
  <h2>Reminder: {{.Title}}</h2>
  <p>Status: {{.Status}} &middot; Priority: {{.Priority}} &middot; {{.Progress}}% done</p>
  {{if .DueDate}}<p>Due {{.DueDate}}</p>{{end}}
  {{if .Summary}}<blockquote>{{.Summary}}</blockquote>{{end}}
</body>
</html>`))

// Compose builds the subject, plain text and HTML bodies for sec.
func Compose(sec section.Section) (subject, text, html string, err error) {
	data := templateData{
		Title:    sec.Title,
		Status:   strings.ReplaceAll(string(sec.Status), "_", " "),
		Priority: string(sec.Priority),
		Progress: sec.Progress,
		Summary:  summary(sec),
	}
	if sec.DueDate != nil {
		data.DueDate = sec.DueDate.Format("Jan 2, 2006")
	}

	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render reminder: %w", err)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "Reminder: %s\n", sec.Title)
	fmt.Fprintf(&plain, "Status: %s, priority: %s, %d%% done\n", data.Status, data.Priority, data.Progress)
	if data.DueDate != "" {
		fmt.Fprintf(&plain, "Due %s\n", data.DueDate)
	}
	if data.Summary != "" {
		fmt.Fprintf(&plain, "\n%s\n", data.Summary)
	}
	return "Reminder: " + sec.Title, plain.String(), buf.String(), nil
}

func summary(sec section.Section) string {
	for _, b := range sec.Content {
		if text := strings.TrimSpace(b.Data.Text); text != "" {
			r := []rune(text)
			if len(r) > 200 {
				return string(r[:200]) + "…"
			}
			return text
		}
	}
	return ""
}
