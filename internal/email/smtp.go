package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"funnel_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// LeadMagnet is the data for the email that delivers a lead magnet.
type LeadMagnet struct {
	FromName        string
	Name            string
	LeadMagnetTitle string
	DownloadURL     string
}

// FollowUp is the data for the email sent after a positive qualification.
type FollowUp struct {
	FromName    string
	Name        string
	PassMessage string
}

type Sender interface {
	SendLeadMagnetEmail(ctx context.Context, toEmail string, data LeadMagnet) error
	SendQualifiedFollowUpEmail(ctx context.Context, toEmail string, data FollowUp) error
}

type NoopSender struct{}

func (NoopSender) SendLeadMagnetEmail(context.Context, string, LeadMagnet) error { return nil }

func (NoopSender) SendQualifiedFollowUpEmail(context.Context, string, FollowUp) error { return nil }

// NewSender returns an SMTP sender, or NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName()), nil
}

// SMTPSender delivers funnel emails over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// buildMessage renders headers and body. An owner-supplied fromName replaces the default display name.
func (s *SMTPSender) buildMessage(toEmail, fromName, subject, htmlContent string) (*gomail.Msg, error) {
	if fromName == "" {
		fromName = s.fromName
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendLeadMagnetEmail(ctx context.Context, toEmail string, data LeadMagnet) error {
	content, err := renderLeadMagnet(data)
	if err != nil {
		return err
	}
	msg, err := s.buildMessage(toEmail, data.FromName, fmt.Sprintf(subjectLeadMagnetFmt, data.LeadMagnetTitle), content)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) SendQualifiedFollowUpEmail(ctx context.Context, toEmail string, data FollowUp) error {
	content, err := renderFollowUp(data)
	if err != nil {
		return err
	}
	msg, err := s.buildMessage(toEmail, data.FromName, subjectQualifiedFollowUp, content)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func renderLeadMagnet(data LeadMagnet) (string, error) {
	return renderEmailTemplate("lead_magnet.html", leadMagnetEmailData{
		baseEmailData: baseEmailData{
			Title:    data.LeadMagnetTitle,
			Heading:  defaultLeadMagnetHeading,
			CTALabel: defaultDownloadLinkLabel,
			CTAURL:   data.DownloadURL,
		},
		Name:            data.Name,
		LeadMagnetTitle: data.LeadMagnetTitle,
		HasDownload:     data.DownloadURL != "",
	})
}

func renderFollowUp(data FollowUp) (string, error) {
	return renderEmailTemplate("qualified_followup.html", followUpEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectQualifiedFollowUp,
			Heading: defaultFollowUpHeading,
		},
		Name:        data.Name,
		PassMessage: data.PassMessage,
	})
}

var _ Sender = (*SMTPSender)(nil)
