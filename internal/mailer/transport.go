package mailer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"attire-api/internal/storage"
)

// LogTransport writes messages to the log instead of delivering them. Used in development.
type LogTransport struct {
	Logger *logrus.Logger
}

func (t LogTransport) Send(_ context.Context, msg Message) error {
	logger := t.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"kind":       msg.Kind,
		"to":         msg.To.Address,
		"subject":    msg.Subject,
	}).Infof("mail (not delivered):\n%s", msg.Body)
	return nil
}

// S3Transport drops each message as an .eml object in an outbox bucket that a
// relay picks up and sends.
type S3Transport struct {
	store  storage.Service
	prefix string
}

func NewS3Transport(store storage.Service, prefix string) *S3Transport {
	return &S3Transport{store: store, prefix: strings.Trim(prefix, "/")}
}

func (t *S3Transport) Send(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	_, err := t.store.Put(ctx, t.Key(msg), bytes.NewReader(msg.Bytes()), storage.PutOptions{
		ContentType: "message/rfc822",
		Metadata: map[string]string{
			"kind": string(msg.Kind),
		},
	})
	if err != nil {
		return fmt.Errorf("write %s message to outbox: %w", msg.Kind, err)
	}
	return nil
}

// Key is the object key of msg: <prefix>/<yyyy>/<mm>/<dd>/<id>.eml
func (t *S3Transport) Key(msg Message) string {
	return path.Join(t.prefix, msg.Date.UTC().Format("2006/01/02"), msg.ID+".eml")
}

var (
	_ Transport = LogTransport{}
	_ Transport = (*S3Transport)(nil)
)
