package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// EmailEncryption selects how the SMTP connection is secured.
type EmailEncryption string

const (
	EncryptionStartTLS EmailEncryption = "starttls" // Upgrade a plain connection when the server offers it
	EncryptionSSL      EmailEncryption = "ssl"      // Implicit TLS from the first byte
	EncryptionNone     EmailEncryption = "none"
)

// EmailConfig defines SMTP delivery settings. To is a comma-separated list.
type EmailConfig struct {
	SMTPServer string          `mapstructure:"smtp_server" yaml:"smtp_server"`
	SMTPPort   int             `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username   string          `mapstructure:"username" yaml:"username,omitempty"`
	Password   string          `mapstructure:"password" yaml:"password,omitempty"`
	From       string          `mapstructure:"from" yaml:"from"`
	To         string          `mapstructure:"to" yaml:"to"`
	Encryption EmailEncryption `mapstructure:"encryption" yaml:"encryption"`
}

// ParseRecipients splits a comma-separated address list, dropping blanks.
func ParseRecipients(list string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := mail.ParseAddress(part)
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", part, err)
		}
		out = append(out, addr.Address)
	}
	if len(out) == 0 {
		return nil, errors.New("no recipients")
	}
	return out, nil
}

// EmailSink delivers events over SMTP.
type EmailSink struct {
	mu     sync.Mutex
	client *gomail.Client
	from   string
	to     []string
	loc    *time.Location
}

// NewEmailSink validates cfg and prepares an SMTP client. No connection is
// made until Send.
func NewEmailSink(cfg EmailConfig, loc *time.Location) (*EmailSink, error) {
	to, err := ParseRecipients(cfg.To)
	if err != nil {
		return nil, err
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	if cfg.SMTPServer == "" {
		return nil, errors.New("smtp_server is required")
	}
	if cfg.Username != "" && cfg.Password == "" {
		return nil, errors.New("password is required when username is set")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTimeout(15 * time.Second),
	}
	auth := gomail.SMTPAuthPlain
	switch cfg.Encryption {
	case EncryptionStartTLS, "":
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	case EncryptionSSL:
		opts = append(opts, gomail.WithSSL())
	case EncryptionNone:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
		// PLAIN refuses to run over a cleartext link unless told otherwise.
		auth = gomail.SMTPAuthPlainNoEnc
	default:
		return nil, fmt.Errorf("unknown encryption %q", cfg.Encryption)
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(auth),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPServer, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &EmailSink{client: client, from: from.String(), to: to, loc: loc}, nil
}

func (e *EmailSink) Kind() ChannelKind { return ChannelEmail }

func (e *EmailSink) Send(ctx context.Context, event Event) error {
	m, ok, err := e.buildMessage(event)
	if err != nil || !ok {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email alert: %w", err)
	}
	return nil
}

func (e *EmailSink) buildMessage(event Event) (*gomail.Msg, bool, error) {
	msg, ok := Format(event, e.loc)
	if !ok {
		return nil, false, nil
	}

	m := gomail.NewMsg()
	if err := m.From(e.from); err != nil {
		return nil, false, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(e.to...); err != nil {
		return nil, false, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Title)
	m.SetDate()
	if msg.Severity == SeverityError {
		m.SetImportance(gomail.ImportanceHigh)
	}
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, true, nil
}
