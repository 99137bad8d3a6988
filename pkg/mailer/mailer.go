package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"html/template"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"assessment-generator/internal/config"
	"assessment-generator/pkg/logger"
)

const subject = "Your IT Assessment is ready"

var htmlBody = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; line-height: 1.5;">
  <p>Hi {{.Name}},</p>
  <p>Thank you for requesting your personalised IT assessment. It is ready to download:</p>
  <p><a href="{{.URL}}" style="display:inline-block;padding:10px 18px;background:#1f6feb;color:#fff;text-decoration:none;border-radius:4px;">Download your IT Assessment</a></p>
  <p style="font-size: 13px; color: #555;">This link expires in 24 hours.</p>
  {{- if .SchedulingURL}}
  <p>Want to talk the recommendations through? <a href="{{.SchedulingURL}}">Book a free consultation</a>.</p>
  {{- end}}
  <p>Best regards,<br>{{.Sender}}</p>
</body>
</html>
`))

type bodyData struct {
	Name          string
	URL           string
	SchedulingURL string
	Sender        string
}

// SendFunc hands a composed message to the relay.
type SendFunc func(ctx context.Context, from string, to []string, msg []byte) error

// Mailer delivers the "assessment ready" notification over SMTP.
type Mailer struct {
	cfg           config.SMTPConfig
	schedulingURL string
	send          SendFunc
	now           func() time.Time
	log           *logger.Logger
}

func New(cfg config.SMTPConfig, schedulingURL string, log *logger.Logger) *Mailer {
	if log == nil {
		log = logger.Nop()
	}
	m := &Mailer{cfg: cfg, schedulingURL: schedulingURL, now: time.Now, log: log}
	m.send = m.deliver
	return m
}

// WithSender replaces the SMTP transport, mainly for tests.
func (m *Mailer) WithSender(fn SendFunc) *Mailer {
	m.send = fn
	return m
}

// SendAssessmentReady e-mails the download link to the requester. name is
// expected in its HTML-escaped form.
func (m *Mailer) SendAssessmentReady(ctx context.Context, to, name, downloadURL string) error {
	msg, err := m.Compose(to, name, downloadURL)
	if err != nil {
		return err
	}
	if err := m.send(ctx, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	m.log.Info("assessment email sent", "email", to)
	return nil
}

// Compose builds the multipart/alternative message.
func (m *Mailer) Compose(to, name, downloadURL string) ([]byte, error) {
	plainName := html.UnescapeString(name)

	var h mail.Header
	h.SetDate(m.now())
	h.SetSubject(subject)
	h.SetAddressList("From", []*mail.Address{{Name: m.cfg.FromName, Address: m.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Name: plainName, Address: to}})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("error generating message id: %w", err)
	}

	var htmlBuf bytes.Buffer
	err := htmlBody.Execute(&htmlBuf, bodyData{
		Name:          plainName,
		URL:           downloadURL,
		SchedulingURL: m.schedulingURL,
		Sender:        m.senderName(),
	})
	if err != nil {
		return nil, fmt.Errorf("error rendering email body: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/plain", m.plainText(plainName, downloadURL)); err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/html", htmlBuf.String()); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}

func (m *Mailer) plainText(name, downloadURL string) string {
	s := fmt.Sprintf("Hi %s,\n\nYour personalised IT assessment is ready:\n%s\n\nThis link expires in 24 hours.\n", name, downloadURL)
	if m.schedulingURL != "" {
		s += fmt.Sprintf("\nBook a free consultation: %s\n", m.schedulingURL)
	}
	return s + "\nBest regards,\n" + m.senderName() + "\n"
}

func (m *Mailer) senderName() string {
	if m.cfg.FromName != "" {
		return m.cfg.FromName
	}
	return m.cfg.From
}

// deliver speaks SMTP to the configured relay. Port 465 uses implicit TLS;
// otherwise UseTLS requires a STARTTLS upgrade.
func (m *Mailer) deliver(ctx context.Context, from string, to []string, msg []byte) error {
	host := m.cfg.Host
	addr := net.JoinHostPort(host, strconv.Itoa(m.cfg.Port))
	implicitTLS := m.cfg.UseTLS && m.cfg.Port == 465

	d := net.Dialer{Timeout: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if implicitTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: host})
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if m.cfg.UseTLS && !implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("SMTP server %s does not support STARTTLS", host)
		}
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set mail recipient: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}
