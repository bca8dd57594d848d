package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"attire-api/internal/domain"
)

// Config describes sender identity and link lifetimes shown in messages.
type Config struct {
	From     string
	ResetTTL time.Duration
	Now      func() time.Time
}

// Mailer renders account emails. Welcome mails go through the dispatcher;
// reset mails are delivered inline so the caller sees the failure.
type Mailer struct {
	cfg        Config
	transport  Transport
	dispatcher Dispatcher
}

func New(cfg Config, transport Transport, dispatcher Dispatcher) (*Mailer, error) {
	if transport == nil || dispatcher == nil {
		return nil, errors.New("mailer: transport and dispatcher are required")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("mailer: invalid from address %q: %w", cfg.From, err)
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Mailer{cfg: cfg, transport: transport, dispatcher: dispatcher}, nil
}

func (m *Mailer) SendWelcome(_ context.Context, to domain.Profile, appURL string) error {
	msg, err := m.compose(KindWelcome, to, "Welcome to the Attire family!", templateData{
		FirstName: firstName(to.Name),
		URL:       appURL,
	})
	if err != nil {
		return err
	}
	return m.dispatcher.Enqueue(msg)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to domain.Profile, resetURL string) error {
	validFor := humanDuration(m.cfg.ResetTTL)
	msg, err := m.compose(KindPasswordReset, to, fmt.Sprintf("Your password reset token (valid for %s)", validFor), templateData{
		FirstName: firstName(to.Name),
		URL:       resetURL,
		ValidFor:  validFor,
	})
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, msg)
}

func (m *Mailer) compose(kind Kind, to domain.Profile, subject string, data templateData) (Message, error) {
	body, err := render(kind, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:      uuid.NewString(),
		Kind:    kind,
		From:    m.cfg.From,
		To:      mail.Address{Name: html.UnescapeString(to.Name), Address: to.Email},
		Subject: subject,
		Body:    body,
		Date:    m.cfg.Now(),
	}, nil
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d h", int(d/time.Hour))
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.String()
}
