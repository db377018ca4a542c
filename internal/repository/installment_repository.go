package repository

import (
	"context"
	"time"

	"github.com/sjperalta/kredim-api/internal/models"
	"gorm.io/gorm"
)

// InstallmentRepository defines the interface for payment plan data access
type InstallmentRepository interface {
	FindByLoan(ctx context.Context, loanID uint) ([]models.Installment, error)
	FindOutstandingByLoan(ctx context.Context, loanID uint) ([]models.Installment, error)
	UpdateBatch(ctx context.Context, installments []models.Installment) error
	FindPendingDueBefore(ctx context.Context, date time.Time) ([]models.Installment, error)
	FindDueBetween(ctx context.Context, from, to time.Time) ([]models.Installment, error)
	MarkReminderSent(ctx context.Context, ids []uint) error
	FindUpcomingByUser(ctx context.Context, userID uint, limit int) ([]models.Installment, error)
	CountOverdueByUser(ctx context.Context, userID uint) (int64, error)
}

type installmentRepository struct {
	db *gorm.DB
}

// NewInstallmentRepository creates a new installment repository
func NewInstallmentRepository(db *gorm.DB) InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) FindByLoan(ctx context.Context, loanID uint) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment_number ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) FindOutstandingByLoan(ctx context.Context, loanID uint) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND status IN ?", loanID, []string{models.InstallmentStatusPending, models.InstallmentStatusOverdue}).
		Order("due_date ASC, installment_number ASC").
		Find(&installments).Error
	return installments, err
}

// UpdateBatch writes amounts, status and payment date of every installment
func (r *installmentRepository) UpdateBatch(ctx context.Context, installments []models.Installment) error {
	if len(installments) == 0 {
		return nil
	}

	db := r.db.WithContext(ctx)
	for _, inst := range installments {
		err := db.Model(&models.Installment{}).
			Where("id = ?", inst.ID).
			Updates(map[string]any{
				"principal_amount": inst.PrincipalAmount,
				"interest_amount":  inst.InterestAmount,
				"total_payment":    inst.TotalPayment,
				"status":           inst.Status,
				"payment_date":     inst.PaymentDate,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *installmentRepository) FindPendingDueBefore(ctx context.Context, date time.Time) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Joins("JOIN loans ON loans.id = installments.loan_id").
		Where("installments.status = ? AND installments.due_date < ?", models.InstallmentStatusPending, date).
		Where("loans.status <> ?", models.LoanStatusClosed).
		Order("installments.loan_id ASC, installments.installment_number ASC").
		Find(&installments).Error
	return installments, err
}

// FindDueBetween returns outstanding installments due in [from, to] that have not been reminded yet
func (r *installmentRepository) FindDueBetween(ctx context.Context, from, to time.Time) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Preload("Loan.User").
		Where("status IN ? AND due_date >= ? AND due_date <= ? AND reminder_sent_at IS NULL",
			[]string{models.InstallmentStatusPending, models.InstallmentStatusOverdue}, from, to).
		Order("due_date ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) MarkReminderSent(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id IN ?", ids).
		Update("reminder_sent_at", time.Now()).Error
}

func (r *installmentRepository) FindUpcomingByUser(ctx context.Context, userID uint, limit int) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Preload("Loan").
		Joins("JOIN loans ON loans.id = installments.loan_id").
		Where("loans.user_id = ? AND installments.status IN ?", userID,
			[]string{models.InstallmentStatusPending, models.InstallmentStatusOverdue}).
		Order("installments.due_date ASC").
		Limit(limit).
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) CountOverdueByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Joins("JOIN loans ON loans.id = installments.loan_id").
		Where("loans.user_id = ? AND installments.status = ?", userID, models.InstallmentStatusOverdue).
		Count(&count).Error
	return count, err
}
