package mailer

import (
	"context"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/sizif-22/eventy-back/pkg/config"
	"github.com/sizif-22/eventy-back/pkg/errors"
)

// Attachment is an inline asset referenced from the HTML body by its
// Content-ID (cid:<Name>).
type Attachment struct {
	Name string
	Data []byte
}

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Inline  []Attachment
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTP builds a Mailer backed by the configured SMTP relay.
func NewSMTP(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New(errors.CodeValidation, "recipient address is required")
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}
	for _, att := range msg.Inline {
		data := att.Data
		gm.Embed(att.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	// gomail has no context support, so the dial+send runs in its own
	// goroutine and the caller's deadline wins.
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(errors.CodeDispatch, err, "smtp send failed")
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.CodeDispatch, ctx.Err(), "smtp send timed out")
	}
}
