package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
)

const (
	// AnalysisErrorHeader is added when no verdict could be produced
	AnalysisErrorHeader = "X-Phish-Analysis-Error"

	defaultSubjectPrefix  = "[PHISHING?] "
	maxMatchedHeaderWords = 20
	classifyTimeout       = 60 * time.Second
)

// PostfixFilter implements a Postfix content filter. Messages are scored,
// tagged with verdict headers and re-injected into Postfix.
type PostfixFilter struct {
	service *core.ThreatScoringService
	logger  *zap.Logger
	cfg     config.SMTPConfig
	server  *smtp.Server
	deliver func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service *core.ThreatScoringService, logger *zap.Logger, cfg config.SMTPConfig) *PostfixFilter {
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}

	f := &PostfixFilter{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
	f.deliver = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("Postfix filter starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail classifies an email without going through SMTP
func (f *PostfixFilter) ProcessEmail(ctx context.Context, payload core.EmailPayload) (*core.ThreatVerdict, error) {
	return f.service.Classify(ctx, payload)
}

// shouldBlock reports whether a verdict is rejected at SMTP time
func (f *PostfixFilter) shouldBlock(level core.ThreatLevel) bool {
	switch level {
	case core.ThreatLevelMalicious:
		return f.cfg.BlockMalicious
	case core.ThreatLevelSuspicious:
		return f.cfg.BlockSuspicious
	default:
		return false
	}
}

// tagMessage prepends the verdict headers to raw and, for non-GOOD
// verdicts, prefixes the subject when enabled. A nil verdict tags the
// message with analysisErr instead.
func (f *PostfixFilter) tagMessage(raw []byte, msg *Message, verdict *core.ThreatVerdict, analysisErr error) []byte {
	header, body := splitMessage(raw)

	var out bytes.Buffer

	if verdict == nil {
		fmt.Fprintf(&out, "%s: %s\r\n", AnalysisErrorHeader, analysisErr.Error())
	} else {
		h := f.cfg.Headers
		fmt.Fprintf(&out, "%s: %s\r\n", h.Level, verdict.Level)
		fmt.Fprintf(&out, "%s: %.4f\r\n", h.Probability, verdict.Probability)
		if matched := matchedHeaderValue(verdict.MatchedWords); matched != "" {
			fmt.Fprintf(&out, "%s: %s\r\n", h.Matched, matched)
		}
		fmt.Fprintf(&out, "%s: %t\r\n", h.TrustedPartner, verdict.IsTrustedPartner)

		if verdict.Level != core.ThreatLevelGood && f.cfg.ModifySubject && f.cfg.SubjectPrefix != "" &&
			!strings.HasPrefix(msg.Subject, f.cfg.SubjectPrefix) {
			subject := mime.QEncoding.Encode("utf-8", f.cfg.SubjectPrefix+msg.Subject)
			fmt.Fprintf(&out, "Subject: %s\r\n", subject)
			header = dropHeader(header, "Subject")
		}
	}

	out.Write(header)
	out.WriteString("\r\n")
	out.Write(body)

	return out.Bytes()
}

// matchedHeaderValue renders matched words as a header value
func matchedHeaderValue(words []string) string {
	if len(words) > maxMatchedHeaderWords {
		words = words[:maxMatchedHeaderWords]
	}
	return mime.QEncoding.Encode("utf-8", strings.Join(words, ", "))
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.PostfixAddress, fmt.Sprintf("%d", f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is already queued at this point
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data classifies the message, rejects it or re-injects it with verdict headers
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter

	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := ParseMessage(raw)
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	payload := msg.Payload(s.sender)

	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()

	// A classification failure never blocks mail; it is tagged and delivered
	verdict, analysisErr := f.service.Classify(ctx, payload)
	if analysisErr != nil {
		f.logger.Error("Failed to classify email",
			zap.String("sender", payload.Sender),
			zap.Error(analysisErr))
	} else if f.shouldBlock(verdict.Level) {
		f.logger.Info("Rejecting email",
			zap.String("sender", payload.Sender),
			zap.String("level", string(verdict.Level)),
			zap.Float64("probability", verdict.Probability))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as %s (probability: %.2f)", verdict.Level, verdict.Probability),
		}
	}

	tagged := f.tagMessage(raw, msg, verdict, analysisErr)

	if !f.cfg.PostfixEnabled {
		f.logger.Warn("Postfix forwarding disabled, message not re-injected",
			zap.String("sender", payload.Sender))
		return nil
	}

	if err := f.deliver(s.sender, s.recipients, tagged); err != nil {
		f.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", payload.Sender))
		return err
	}

	fields := []zap.Field{zap.String("sender", payload.Sender)}
	if verdict != nil {
		fields = append(fields,
			zap.String("level", string(verdict.Level)),
			zap.Float64("probability", verdict.Probability))
	}
	f.logger.Info("Processed email", fields...)

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
