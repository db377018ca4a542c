package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

// checkEmailPreconditions reports whether an email may be sent to user. Disabled
// notifications are a silent skip; broken configuration or a missing address is an error.
func (s *EmailService) checkEmailPreconditions(user *models.User, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Debug("[Email] notifications disabled, skipping", "operation", operation)
		return false, nil
	}
	if s.config.ResendAPIKey == "" {
		return false, errors.New("RESEND_API_KEY is not set")
	}
	if s.config.FromEmail == "" {
		return false, errors.New("FROM_EMAIL is not set")
	}
	if user == nil || user.Email == "" {
		return false, errors.New("email address is empty")
	}
	return true, nil
}

func (s *EmailService) send(to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.resendClient.Emails.Send(params); err != nil {
		logger.Error("[Email] send failed", "to", to, "subject", subject, "error", err)
		return err
	}
	logger.Info("[Email] sent", "to", to, "subject", subject)
	return nil
}

func (s *EmailService) SendAccountCreated(ctx context.Context, user *models.User) error {
	if ok, err := s.checkEmailPreconditions(user, "account created"); !ok {
		return err
	}

	data := struct {
		Name   string
		AppURL string
	}{
		Name:   user.FullName,
		AppURL: s.config.AppURL,
	}

	body, err := s.renderTemplate("account_created.html", data)
	if err != nil {
		return err
	}
	return s.send(user.Email, "Kredim'e hoş geldiniz", body)
}

type receiptLine struct {
	Number  int
	DueDate string
	Kind    string
	Amount  string
}

// SendPaymentReceipt emails a summary of one payment action
func (s *EmailService) SendPaymentReceipt(ctx context.Context, user *models.User, loan *models.Loan, records []models.PaymentRecord, numbers map[uint]int) error {
	if ok, err := s.checkEmailPreconditions(user, "payment receipt"); !ok {
		return err
	}

	total := decimal.Zero
	lines := make([]receiptLine, 0, len(records))
	var paidOn time.Time
	channel := ""
	for _, rec := range records {
		total = total.Add(rec.Amount)
		paidOn = rec.PaymentDate
		channel = rec.Channel
		line := receiptLine{Kind: kindLabel(rec.Kind), Amount: formatTL(rec.Amount)}
		if rec.InstallmentID != nil {
			line.Number = numbers[*rec.InstallmentID]
		}
		lines = append(lines, line)
	}

	data := struct {
		Name           string
		LoanName       string
		BankName       string
		Total          string
		PaymentDate    string
		Channel        string
		Lines          []receiptLine
		RemainingDebt  string
		RemainingCount int
		Closed         bool
		AppURL         string
	}{
		Name:           user.FullName,
		LoanName:       loan.Name,
		BankName:       loan.BankName,
		Total:          formatTL(total),
		PaymentDate:    formatDate(paidOn),
		Channel:        channelLabel(channel),
		Lines:          lines,
		RemainingDebt:  formatTL(loan.RemainingDebt),
		RemainingCount: loan.RemainingInstallments,
		Closed:         loan.IsClosed(),
		AppURL:         s.config.AppURL,
	}

	body, err := s.renderTemplate("payment_recorded.html", data)
	if err != nil {
		return err
	}
	return s.send(user.Email, fmt.Sprintf("Ödemeniz kaydedildi: %s", loan.Name), body)
}

// SendPaymentReversed tells the user a payment was taken back
func (s *EmailService) SendPaymentReversed(ctx context.Context, user *models.User, loan *models.Loan, amount decimal.Decimal) error {
	if ok, err := s.checkEmailPreconditions(user, "payment reversed"); !ok {
		return err
	}

	data := struct {
		Name          string
		LoanName      string
		Amount        string
		RemainingDebt string
		AppURL        string
	}{
		Name:          user.FullName,
		LoanName:      loan.Name,
		Amount:        formatTL(amount),
		RemainingDebt: formatTL(loan.RemainingDebt),
		AppURL:        s.config.AppURL,
	}

	body, err := s.renderTemplate("payment_reversed.html", data)
	if err != nil {
		return err
	}
	return s.send(user.Email, fmt.Sprintf("Ödeme iptal edildi: %s", loan.Name), body)
}

type reminderLine struct {
	LoanName string
	BankName string
	Number   int
	DueDate  string
	Amount   string
	DaysLeft int
}

// SendUpcomingInstallments sends one reminder listing every installment due soon.
// Installments must have Loan preloaded.
func (s *EmailService) SendUpcomingInstallments(ctx context.Context, user *models.User, installments []models.Installment, today time.Time) error {
	if ok, err := s.checkEmailPreconditions(user, "upcoming installments"); !ok {
		return err
	}

	total := decimal.Zero
	lines := make([]reminderLine, 0, len(installments))
	for _, inst := range installments {
		total = total.Add(inst.TotalPayment)
		lines = append(lines, reminderLine{
			LoanName: inst.Loan.Name,
			BankName: inst.Loan.BankName,
			Number:   inst.InstallmentNumber,
			DueDate:  formatDate(inst.DueDate),
			Amount:   formatTL(inst.TotalPayment),
			DaysLeft: int(inst.DueDate.Sub(today).Hours() / 24),
		})
	}

	data := struct {
		Name   string
		Lines  []reminderLine
		Total  string
		AppURL string
	}{
		Name:   user.FullName,
		Lines:  lines,
		Total:  formatTL(total),
		AppURL: s.config.AppURL,
	}

	body, err := s.renderTemplate("upcoming_installments.html", data)
	if err != nil {
		return err
	}
	return s.send(user.Email, "Yaklaşan taksit hatırlatması", body)
}

// SendOverdueNotice warns the user about installments that just became overdue
func (s *EmailService) SendOverdueNotice(ctx context.Context, user *models.User, loan *models.Loan, installments []models.Installment, today time.Time) error {
	if ok, err := s.checkEmailPreconditions(user, "overdue notice"); !ok {
		return err
	}

	total := decimal.Zero
	lines := make([]reminderLine, 0, len(installments))
	for _, inst := range installments {
		total = total.Add(inst.TotalPayment)
		lines = append(lines, reminderLine{
			LoanName: loan.Name,
			BankName: loan.BankName,
			Number:   inst.InstallmentNumber,
			DueDate:  formatDate(inst.DueDate),
			Amount:   formatTL(inst.TotalPayment),
			DaysLeft: -inst.OverdueDays(today),
		})
	}

	data := struct {
		Name     string
		LoanName string
		Lines    []reminderLine
		Total    string
		AppURL   string
	}{
		Name:     user.FullName,
		LoanName: loan.Name,
		Lines:    lines,
		Total:    formatTL(total),
		AppURL:   s.config.AppURL,
	}

	body, err := s.renderTemplate("installment_overdue.html", data)
	if err != nil {
		return err
	}
	return s.send(user.Email, fmt.Sprintf("Gecikmiş taksit: %s", loan.Name), body)
}

func (s *EmailService) SendLoanClosed(ctx context.Context, user *models.User, loan *models.Loan) error {
	if ok, err := s.checkEmailPreconditions(user, "loan closed"); !ok {
		return err
	}

	data := struct {
		Name          string
		LoanName      string
		BankName      string
		InitialAmount string
		AppURL        string
	}{
		Name:          user.FullName,
		LoanName:      loan.Name,
		BankName:      loan.BankName,
		InitialAmount: formatTL(loan.InitialAmount),
		AppURL:        s.config.AppURL,
	}

	body, err := s.renderTemplate("loan_closed.html", data)
	if err != nil {
		return err
	}
	return s.send(user.Email, fmt.Sprintf("Tebrikler, %s kapandı", loan.Name), body)
}

func (s *EmailService) renderTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

func kindLabel(kind string) string {
	switch kind {
	case models.PaymentKindFull:
		return "Tam ödeme"
	case models.PaymentKindPartial:
		return "Kısmi ödeme"
	case models.PaymentKindAggregate:
		return "Toplu ödeme"
	}
	return kind
}
