package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/probitylabs/sealchain/internal/incident"
)

// Sender delivers a plain-text email. Satisfied by SMTPSender; tests
// substitute fakes.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailNotifier formats incidents as plain-text email and hands them to a
// Sender.
type EmailNotifier struct {
	sender Sender
	to     string
}

// NewEmailNotifier creates an EmailNotifier that delivers to the given
// recipient.
func NewEmailNotifier(sender Sender, to string) *EmailNotifier {
	return &EmailNotifier{sender: sender, to: to}
}

// Notify implements Notifier.
func (e *EmailNotifier) Notify(ctx context.Context, inc *incident.Incident) error {
	short := inc.Asset
	if len(short) > 12 {
		short = short[:12]
	}
	subject := fmt.Sprintf("sealchain %s: %s chain break on asset %s", inc.Severity, inc.Kind, short)

	lines := []string{
		"A chain integrity incident was detected.",
		"",
		"Asset:    " + inc.Asset,
		"Chain:    " + inc.Kind.String(),
		"Severity: " + string(inc.Severity),
		fmt.Sprintf("Position: %d", inc.Position),
		fmt.Sprintf("Slot:     %d", inc.Slot),
	}
	if inc.ExpectedDigest != "" {
		lines = append(lines,
			"Expected: "+inc.ExpectedDigest,
			"Computed: "+inc.ComputedDigest,
		)
	}
	if inc.Detail != "" {
		lines = append(lines, "", inc.Detail)
	}
	lines = append(lines, "", "Incident ID: "+inc.ID.String())

	if err := e.sender.Send(ctx, e.to, subject, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("send incident email: %w", err)
	}
	return nil
}

// SMTPSender sends email via an SMTP server.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers a plain-text email.
func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	// Port 465 uses implicit TLS; 587 uses STARTTLS (smtp.SendMail handles this).
	if s.port == 465 {
		return s.sendImplicitTLS(addr, auth, to, []byte(msg))
	}
	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg))
}

func (s *SMTPSender) sendImplicitTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	host, _, _ := net.SplitHostPort(addr)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := fmt.Fprint(wc, string(msg)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	return wc.Close()
}
