package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/config"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
)

// EmailNotifier delivers alerts over SMTP as a secondary channel.
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// Send delivers one alert email. An incomplete SMTP config skips delivery
// without error so the primary channel is unaffected.
func (n *EmailNotifier) Send(ctx context.Context, product *model.Product, kind Kind) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(n.cfg.ToEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	subject := "[HW Tracker] 🆕 New Hot Wheels in stock"
	if kind == KindRestock {
		subject = "[HW Tracker] 🔄 Hot Wheels back in stock"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", n.cfg.ToEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", n.buildHTMLBody(product, kind))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email notification sent",
		slog.String("to", n.cfg.ToEmail),
		slog.String("kind", string(kind)))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(product *model.Product, kind Kind) string {
	price := "N/A"
	if product.Price.Valid {
		price = "₹" + product.Price.Decimal.StringFixed(2)
	}

	headline := "New product available"
	if kind == KindRestock {
		headline = "Product back in stock"
	}

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .price { font-size: 26px; font-weight: bold; color: #ef4444; margin: 8px 0 12px; }
  .title { font-size: 16px; margin-bottom: 16px; }
  .cta { display: inline-block; padding: 12px 20px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[HW Tracker] %s</div>
    <div class="content">
      <div class="title">%s</div>
      <div class="price">%s</div>
      <div style="text-align:center; margin-bottom: 12px;">
        <a class="cta" href="%s" target="_blank">Open product page</a>
      </div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, headline, product.Name, price, product.URL)
}
