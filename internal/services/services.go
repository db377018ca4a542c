package services

import (
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/jobs"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/sjperalta/kredim-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	Loan         *LoanService
	Payment      *PaymentService
	Report       *ReportService
	Notification *NotificationService
	Audit        *AuditService
	Email        *EmailService
	Job          *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, storage *storage.LocalStorage, cfg *config.Config) *Services {
	loc := cfg.Location()
	notificationSvc := NewNotificationService(repos.Notification)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(repos.Audit)

	loanSvc := NewLoanService(repos.Tx, repos.Loan, repos.Installment, notificationSvc, auditSvc, worker, loc)
	paymentSvc := NewPaymentService(repos.Tx, repos.Loan, repos.Installment, repos.PaymentRecord, repos.User,
		notificationSvc, emailSvc, auditSvc, storage, worker, loc, cfg.ReminderDaysAhead)
	paymentSvc.locks = loanSvc.locks

	return &Services{
		Auth:         NewAuthService(repos.User, repos.RefreshToken, emailSvc, worker, cfg),
		Loan:         loanSvc,
		Payment:      paymentSvc,
		Report:       NewReportService(repos.Loan, repos.PaymentRecord, loc),
		Notification: notificationSvc,
		Audit:        auditSvc,
		Email:        emailSvc,
		Job:          NewJobService(worker),
	}
}
