// Package mailer renders account emails and hands them to a delivery transport.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"text/template"
	"time"
)

// Kind identifies which account email a message is.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindPasswordReset Kind = "password_reset"
)

// Message is a rendered plain text email.
type Message struct {
	ID      string
	Kind    Kind
	From    string
	To      mail.Address
	Subject string
	Body    string
	Date    time.Time
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Bytes encodes the message as an RFC 5322 document.
func (m Message) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", m.Date.UTC().Format(time.RFC1123Z))
	if m.ID != "" {
		fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", m.ID)
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return buf.Bytes()
}

var templates = template.Must(template.Must(
	template.New(string(KindWelcome)).Parse(welcomeText)).
	New(string(KindPasswordReset)).Parse(resetText))

const welcomeText = `Hi {{.FirstName}},

Welcome to Attire, we're glad to have you on board.
Start browsing the latest collection here: {{.URL}}

The Attire team
`

const resetText = `Hi {{.FirstName}},

Forgot your password? Submit a request with your new password and confirmPassword to:
{{.URL}}

This link is valid for {{.ValidFor}}.
If you didn't forget your password, please ignore this email.
`

type templateData struct {
	FirstName string
	URL       string
	ValidFor  string
}

func render(kind Kind, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return "", fmt.Errorf("render %s email: %w", kind, err)
	}
	return buf.String(), nil
}

// firstName undoes the markup escaping applied to stored names; the body is plain text.
func firstName(name string) string {
	fields := strings.Fields(html.UnescapeString(name))
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
