package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/services"
	"github.com/sjperalta/kredim-api/pkg/logger"
)

// Sends one of each transactional email to TEST_EMAIL_TO so templates can be checked in a real inbox.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup("development", "debug")

	if cfg.ResendAPIKey == "" || cfg.FromEmail == "" {
		log.Fatal("RESEND_API_KEY and FROM_EMAIL must be set")
	}
	cfg.EnableEmailNotifications = true

	emailService := services.NewEmailService(cfg)

	toEmail := os.Getenv("TEST_EMAIL_TO")
	if toEmail == "" {
		toEmail = "test@example.com"
		log.Println("TEST_EMAIL_TO not set, using test@example.com. Delivery fails unless the domain is verified.")
	}

	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	user := &models.User{ID: 1, FullName: "Test Kullanıcı", Email: toEmail}

	inst := models.Installment{
		ID:                1,
		LoanID:            1,
		InstallmentNumber: 4,
		DueDate:           today.AddDate(0, 0, 3),
		PrincipalAmount:   decimal.NewFromInt(850),
		InterestAmount:    decimal.NewFromInt(150),
		TotalPayment:      decimal.NewFromInt(1000),
		RemainingDebt:     decimal.NewFromInt(8500),
		ScheduledTotal:    decimal.NewFromInt(1000),
		Status:            models.InstallmentStatusPending,
	}
	loan := &models.Loan{
		ID:            1,
		Name:          "İhtiyaç kredisi",
		BankName:      "Örnek Bank",
		InitialAmount: decimal.NewFromInt(12000),
		RemainingDebt: decimal.NewFromInt(8500),
		Installments:  []models.Installment{inst},
	}
	record := models.PaymentRecord{
		ID:               1,
		LoanID:           1,
		InstallmentID:    &inst.ID,
		Kind:             models.PaymentKindFull,
		Amount:           decimal.NewFromInt(1000),
		PrincipalPortion: decimal.NewFromInt(850),
		InterestPortion:  decimal.NewFromInt(150),
		PaymentDate:      today,
		Channel:          models.PaymentChannelTransfer,
	}
	inst.Loan = *loan

	steps := []struct {
		name string
		send func() error
	}{
		{"account created", func() error { return emailService.SendAccountCreated(ctx, user) }},
		{"payment receipt", func() error {
			return emailService.SendPaymentReceipt(ctx, user, loan, []models.PaymentRecord{record}, map[uint]int{inst.ID: inst.InstallmentNumber})
		}},
		{"payment reversed", func() error { return emailService.SendPaymentReversed(ctx, user, loan, record.Amount) }},
		{"upcoming installments", func() error {
			return emailService.SendUpcomingInstallments(ctx, user, []models.Installment{inst}, today)
		}},
		{"overdue notice", func() error {
			overdue := inst
			overdue.DueDate = today.AddDate(0, 0, -5)
			overdue.Status = models.InstallmentStatusOverdue
			return emailService.SendOverdueNotice(ctx, user, loan, []models.Installment{overdue}, today)
		}},
		{"loan closed", func() error { return emailService.SendLoanClosed(ctx, user, loan) }},
	}

	for _, step := range steps {
		log.Printf("Sending %s email to %s...", step.name, toEmail)
		if err := step.send(); err != nil {
			log.Fatalf("Failed to send %s email: %v", step.name, err)
		}
	}
	log.Println("All test emails sent")
}
