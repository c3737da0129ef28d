package service

import (
	"errors"
	"fmt"

	"moneytrack/analytics"
	"moneytrack/config"
	"moneytrack/logger"

	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled 邮件服务未启用
var ErrEmailDisabled = errors.New("邮件服务未启用，请配置 MONEYTRACK_EMAIL_ENABLED=true")

// EmailService 邮件服务
type EmailService struct {
	cfg  *config.EmailConfig
	send func(m *gomail.Message) error
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

// Enabled 是否启用
func (s *EmailService) Enabled() bool {
	return s.cfg.Enabled
}

// SendWelcomeEmail 注册成功后的欢迎邮件
func (s *EmailService) SendWelcomeEmail(toEmail, name string) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	return s.sendEmail(toEmail, "Welcome to MoneyTrack", s.generateWelcomeEmailBody(name))
}

// SendBudgetAlertEmail 本月支出超过预算阈值时的提醒邮件
func (s *EmailService) SendBudgetAlertEmail(toEmail, name, month, currency string, status analytics.BudgetStatus, used float64) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	subject := fmt.Sprintf("[MoneyTrack] You have used %.0f%% of your %s budget", used, month)
	return s.sendEmail(toEmail, subject, s.generateBudgetAlertEmailBody(name, month, currency, status, used))
}

// SendTestEmail 发送测试邮件
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}

	body := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>✅ Email configured</h2>
    <p>If you received this message, MoneyTrack can send email.</p>
</body>
</html>
`
	return s.sendEmail(toEmail, "[MoneyTrack] Email configuration test", body)
}

func (s *EmailService) generateWelcomeEmailBody(name string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #0f172a; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: linear-gradient(135deg, #3b82f6, #8b5cf6); color: white; padding: 30px; text-align: center; }
        .content { padding: 40px 30px; color: #333; line-height: 1.8; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>💰 MoneyTrack</h1></div>
        <div class="content">
            <p>Hi <strong>%s</strong>,</p>
            <p>Your account is ready. Start recording income and expenses to see your dashboard come alive.</p>
        </div>
        <div class="footer"><p>This message was sent automatically, please do not reply.</p></div>
    </div>
</body>
</html>
`, name)
}

func (s *EmailService) generateBudgetAlertEmailBody(name, month, currency string, status analytics.BudgetStatus, used float64) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #0f172a; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: linear-gradient(135deg, #f59e0b, #ef4444); color: white; padding: 30px; text-align: center; }
        .content { padding: 40px 30px; color: #333; line-height: 1.8; }
        .meter { font-size: 36px; font-weight: bold; color: #ef4444; text-align: center; margin: 20px 0; }
        table { width: 100%%; border-collapse: collapse; }
        td { padding: 8px 0; border-bottom: 1px solid #eee; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>💰 Budget alert</h1></div>
        <div class="content">
            <p>Hi <strong>%s</strong>,</p>
            <p>Your expenses for %s have reached:</p>
            <div class="meter">%.0f%%</div>
            <table>
                <tr><td>Budget</td><td>%s%.2f</td></tr>
                <tr><td>Spent</td><td>%s%.2f</td></tr>
                <tr><td>Remaining</td><td>%s%.2f</td></tr>
            </table>
        </div>
        <div class="footer"><p>This message was sent automatically, please do not reply.</p></div>
    </div>
</body>
</html>
`, name, month, used,
		currency, status.Budget,
		currency, status.Spent,
		currency, status.Remaining)
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		clog := logger.Component(logger.ComponentEmail)
		clog.Error().Err(err).Str("to", to).Msg("send email failed")
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

func (s *EmailService) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	return d.DialAndSend(m)
}
