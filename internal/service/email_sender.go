package service

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/sirupsen/logrus"

	"github.com/partiksingh1/smartbank/internal/config"
	"github.com/partiksingh1/smartbank/internal/model"
)

type EmailSender struct {
	dialer  *mail.Dialer
	from    string
	logger  *logrus.Logger
	enabled bool
}

func NewEmailSender(cfg config.SMTPConfig, logger *logrus.Logger) *EmailSender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	return &EmailSender{
		dialer:  d,
		from:    cfg.User,
		logger:  logger,
		enabled: cfg.Enabled,
	}
}

func (es *EmailSender) SendTransactionNotification(email string, entry *model.Transaction, accountNumber string) error {
	if !es.enabled {
		es.logger.Debug("Отправка уведомлений отключена")
		return nil
	}

	subject := fmt.Sprintf("Уведомление об операции (%s)", entry.Type)
	content := fmt.Sprintf(`
		<h1>Уведомление об операции</h1>
		<p>Тип операции: <strong>%s</strong></p>
		<p>Счет: <strong>%s</strong></p>
		<p>Сумма: <strong>%s</strong></p>
		<p>Номер операции: <strong>%d</strong></p>
		<p>Дата: <strong>%s</strong></p>
		<small>Это автоматическое уведомление, пожалуйста, не отвечайте на него</small>
	`, entry.Type, maskAccountNumber(accountNumber), entry.Amount.StringFixed(2), entry.ID,
		entry.TransactionDate.Format("02.01.2006 15:04"))

	return es.sendEmail(email, subject, content)
}

// SendReconciliationReport сообщает дежурным о записях, закрытых сверкой
func (es *EmailSender) SendReconciliationReport(email string, entries []model.Transaction) error {
	if !es.enabled {
		es.logger.Debug("Отправка уведомлений отключена")
		return nil
	}

	var rows strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&rows, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			e.ID, e.Type, e.Amount.StringFixed(2), e.TransactionDate.Format(time.RFC3339))
	}

	subject := fmt.Sprintf("Сверка журнала: %d зависших операций закрыто", len(entries))
	content := fmt.Sprintf(`
		<h1>Сверка журнала операций</h1>
		<p>Записи в статусе PENDING переведены в FAILED:</p>
		<table><tr><th>ID</th><th>Тип</th><th>Сумма</th><th>Дата</th></tr>%s</table>
	`, rows.String())

	return es.sendEmail(email, subject, content)
}

func (es *EmailSender) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", es.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := es.dialer.DialAndSend(m); err != nil {
		es.logger.WithError(err).Error("Ошибка отправки email")
		return fmt.Errorf("не удалось отправить email: %w", err)
	}

	es.logger.Infof("Email успешно отправлен на %s", to)
	return nil
}

func maskAccountNumber(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return "********" + number[len(number)-4:]
}
