package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"go-marketplace/models"
)

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewMailer returns the mailer selected by MAIL_PROVIDER.
func NewMailer(cfg *Config, log *zap.Logger) (Mailer, error) {
	switch cfg.MailProvider {
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return &PostmarkMailer{client: postmark.NewClient(cfg.PostmarkToken, ""), from: cfg.EmailSender}, nil
	case "sendgrid":
		if cfg.SendgridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return &SendgridMailer{client: sendgrid.NewSendClient(cfg.SendgridKey), from: cfg.EmailSender}, nil
	case "", "none":
		return LogMailer{log: log}, nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}
}

// PostmarkMailer handles sending emails using Postmark
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func (m *PostmarkMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendgridMailer handles sending emails using SendGrid
type SendgridMailer struct {
	client *sendgrid.Client
	from   string
}

func (m *SendgridMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	msg := mail.NewSingleEmail(mail.NewEmail("Marketplace", m.from), subject, mail.NewEmail("", to), htmlBody, htmlBody)
	res, err := m.client.Send(msg)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer only logs; used when no provider is configured.
type LogMailer struct {
	log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	if m.log != nil {
		m.log.Info("mail not sent, no provider configured", zap.String("to", to), zap.String("subject", subject))
	}
	return nil
}

// OrderConfirmation renders the confirmation mail for order.
func OrderConfirmation(order models.Order) (subject, htmlBody string) {
	var rows strings.Builder
	for _, li := range order.Products {
		fmt.Fprintf(&rows, "<li>%s x %d: ₹%s</li>", li.Title, li.Quantity, li.Price.Times(li.Quantity))
	}
	subject = fmt.Sprintf("Order %s confirmed", order.OrderID)
	htmlBody = fmt.Sprintf(
		"<strong>Thank you for your order!</strong><br><br>Order <strong>%s</strong> has been placed.<ul>%s</ul>"+
			"Delivery: ₹%s<br>Coupon: -₹%s<br>COD charges: ₹%s<br>Total: <strong>₹%s</strong><br>Payment method: %s",
		order.OrderID, rows.String(), order.DeliveryCharges, order.CouponDiscount, order.CodCharges, order.FinalAmount, order.PaymentMethod,
	)
	return subject, htmlBody
}
