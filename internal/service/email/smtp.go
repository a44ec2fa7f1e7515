package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
)

// SMTPProvider implements the Provider interface using SMTP
// This is useful for development with Mailhog or other SMTP servers
type SMTPProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
	useTLS    bool
}

// NewSMTPProvider creates a new SMTP provider
func NewSMTPProvider(host string, port int, username, password, fromEmail, fromName string, useTLS bool) *SMTPProvider {
	return &SMTPProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
		useTLS:    useTLS,
	}
}

// Send sends an email using SMTP
func (p *SMTPProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := p.buildMessage(msg)
	if err != nil {
		return "", err
	}

	// Connect and send
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	send := p.sendPlain
	if p.useTLS {
		send = p.sendTLS
	}
	if err := send(addr, msg.To, body); err != nil {
		return "", err
	}
	return "250 queued", nil
}

// buildMessage renders headers and body. A message with both parts is sent
// as multipart/alternative, plain text first.
func (p *SMTPProvider) buildMessage(msg Message) (string, error) {
	// Header order is fixed so messages are reproducible.
	headers := [][2]string{
		{"From", p.formatFrom()},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"MIME-Version", "1.0"},
	}

	var body bytes.Buffer
	switch {
	case msg.Text != "" && msg.HTML != "":
		mw := multipart.NewWriter(&body)
		headers = append(headers, [2]string{"Content-Type", "multipart/alternative; boundary=" + mw.Boundary()})
		for _, part := range [][2]string{{"text/plain", msg.Text}, {"text/html", msg.HTML}} {
			w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part[0] + "; charset=UTF-8"}})
			if err != nil {
				return "", fmt.Errorf("smtp: build part: %w", err)
			}
			if _, err := w.Write([]byte(part[1])); err != nil {
				return "", fmt.Errorf("smtp: build part: %w", err)
			}
		}
		if err := mw.Close(); err != nil {
			return "", fmt.Errorf("smtp: build message: %w", err)
		}
	case msg.HTML != "":
		headers = append(headers, [2]string{"Content-Type", "text/html; charset=UTF-8"})
		body.WriteString(msg.HTML)
	default:
		headers = append(headers, [2]string{"Content-Type", "text/plain; charset=UTF-8"})
		body.WriteString(msg.Text)
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	message.WriteString("\r\n")
	message.Write(body.Bytes())
	return message.String(), nil
}

// sendPlain sends email without TLS (for Mailhog and local development)
func (p *SMTPProvider) sendPlain(addr, to, message string) error {
	var auth smtp.Auth
	if p.username != "" && p.password != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	err := smtp.SendMail(addr, auth, p.fromEmail, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}

	return nil
}

// sendTLS sends email with TLS
func (p *SMTPProvider) sendTLS(addr, to, message string) error {
	// Connect to SMTP server
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: p.host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("tls dial error: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return fmt.Errorf("smtp client error: %w", err)
	}
	defer client.Close()

	// Authenticate if credentials provided
	if p.username != "" && p.password != "" {
		auth := smtp.PlainAuth("", p.username, p.password, p.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth error: %w", err)
		}
	}

	// Set sender
	if err := client.Mail(p.fromEmail); err != nil {
		return fmt.Errorf("smtp mail error: %w", err)
	}

	// Set recipient
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt error: %w", err)
	}

	// Send message body
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data error: %w", err)
	}

	_, err = writer.Write([]byte(message))
	if err != nil {
		return fmt.Errorf("smtp write error: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("smtp close error: %w", err)
	}

	return client.Quit()
}

// formatFrom formats the from address with name
func (p *SMTPProvider) formatFrom() string {
	if p.fromName != "" {
		return fmt.Sprintf("%s <%s>", p.fromName, p.fromEmail)
	}
	return p.fromEmail
}
