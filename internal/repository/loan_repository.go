package repository

import (
	"context"
	"errors"

	"github.com/sjperalta/kredim-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a loan changed since it was read
var ErrVersionConflict = errors.New("kredi başka bir işlem tarafından değiştirildi")

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Loan, error)
	FindByIDForUser(ctx context.Context, id, userID uint) (*models.Loan, error)
	FindByIDWithInstallments(ctx context.Context, id, userID uint) (*models.Loan, error)
	LockByID(ctx context.Context, id uint) (*models.Loan, error)
	FindByUser(ctx context.Context, userID uint, query *ListQuery) ([]models.Loan, int64, error)
	FindOpenByUser(ctx context.Context, userID uint) ([]models.Loan, error)
	Create(ctx context.Context, loan *models.Loan) error
	UpdateDetails(ctx context.Context, loan *models.Loan) error
	UpdateAggregate(ctx context.Context, loan *models.Loan, expectedVersion int) error
	Delete(ctx context.Context, id uint) error
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByIDForUser(ctx context.Context, id, userID uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByIDWithInstallments(ctx context.Context, id, userID uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number ASC")
		}).
		Where("user_id = ?", userID).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// LockByID reads the loan with SELECT ... FOR UPDATE. Only meaningful inside a transaction.
func (r *loanRepository) LockByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByUser(ctx context.Context, userID uint, query *ListQuery) ([]models.Loan, int64, error) {
	var loans []models.Loan
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Loan{}).Where("user_id = ?", userID)

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("name ILIKE ? OR bank_name ILIKE ?", search, search)
	}
	if status := query.Filters["status"]; status != "" {
		db = db.Where("status = ?", status)
	}
	if loanType := query.Filters["loan_type"]; loanType != "" {
		db = db.Where("loan_type = ?", loanType)
	}

	db.Count(&total)

	switch query.SortBy {
	case "name", "bank_name", "remaining_debt", "start_date", "created_at":
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	default:
		db = db.Order("created_at DESC")
	}

	err := query.paginate(db).Find(&loans).Error
	return loans, total, err
}

func (r *loanRepository) FindOpenByUser(ctx context.Context, userID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.LoanStatusClosed).
		Order("created_at ASC").
		Find(&loans).Error
	return loans, err
}

// Create inserts the loan together with its installments
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *loanRepository) UpdateDetails(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", loan.ID).
		Select("Name", "BankName", "LoanType", "Notes").
		Updates(loan).Error
}

// UpdateAggregate writes the derived loan fields if the stored version still equals
// expectedVersion, bumping it by one. loan.Version is updated on success.
func (r *loanRepository) UpdateAggregate(ctx context.Context, loan *models.Loan, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND version = ?", loan.ID, expectedVersion).
		Updates(map[string]any{
			"remaining_debt":         loan.RemainingDebt,
			"remaining_installments": loan.RemainingInstallments,
			"payment_progress":       loan.PaymentProgress,
			"status":                 loan.Status,
			"closed_at":              loan.ClosedAt,
			"version":                expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	loan.Version = expectedVersion + 1
	return nil
}

func (r *loanRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("loan_id = ?", id).Delete(&models.PaymentRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("loan_id = ?", id).Delete(&models.Installment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Loan{}, id).Error
	})
}
