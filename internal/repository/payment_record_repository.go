package repository

import (
	"context"
	"errors"

	"github.com/sjperalta/kredim-api/internal/models"
	"gorm.io/gorm"
)

// PaymentRecordRepository defines the interface for payment history data access
type PaymentRecordRepository interface {
	FindByID(ctx context.Context, id uint) (*models.PaymentRecord, error)
	FindByLoan(ctx context.Context, loanID uint, query *ListQuery) ([]models.PaymentRecord, int64, error)
	FindByOperation(ctx context.Context, loanID uint, operationID string) ([]models.PaymentRecord, error)
	LatestOperationID(ctx context.Context, loanID uint) (string, error)
	CreateBatch(ctx context.Context, records []models.PaymentRecord) error
	Delete(ctx context.Context, id uint) error
	DeleteByOperation(ctx context.Context, loanID uint, operationID string) error
	UpdateReceipt(ctx context.Context, id uint, path string) error
}

type paymentRecordRepository struct {
	db *gorm.DB
}

// NewPaymentRecordRepository creates a new payment record repository
func NewPaymentRecordRepository(db *gorm.DB) PaymentRecordRepository {
	return &paymentRecordRepository{db: db}
}

func (r *paymentRecordRepository) FindByID(ctx context.Context, id uint) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Preload("Installment").
		Preload("Settlements", bySettlementPosition).
		First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *paymentRecordRepository) FindByLoan(ctx context.Context, loanID uint, query *ListQuery) ([]models.PaymentRecord, int64, error) {
	var records []models.PaymentRecord
	var total int64

	db := r.db.WithContext(ctx).Model(&models.PaymentRecord{}).Where("loan_id = ?", loanID)

	if kind := query.Filters["kind"]; kind != "" {
		db = db.Where("kind = ?", kind)
	}
	if channel := query.Filters["channel"]; channel != "" {
		db = db.Where("channel = ?", channel)
	}

	db.Count(&total)
	db = db.Preload("Installment").Order("payment_date DESC, id DESC")

	err := query.paginate(db).Find(&records).Error
	return records, total, err
}

// FindByOperation returns the records of one payment action in creation order
func (r *paymentRecordRepository) FindByOperation(ctx context.Context, loanID uint, operationID string) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Preload("Settlements", bySettlementPosition).
		Where("loan_id = ? AND operation_id = ?", loanID, operationID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// LatestOperationID returns the operation id of the most recent payment, "" when there is none
func (r *paymentRecordRepository) LatestOperationID(ctx context.Context, loanID uint) (string, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Select("operation_id").
		Where("loan_id = ?", loanID).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.OperationID, nil
}

func bySettlementPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// CreateBatch inserts records together with their settlements
func (r *paymentRecordRepository) CreateBatch(ctx context.Context, records []models.PaymentRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *paymentRecordRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.PaymentRecord{}, id).Error
}

func (r *paymentRecordRepository) DeleteByOperation(ctx context.Context, loanID uint, operationID string) error {
	return r.db.WithContext(ctx).
		Where("loan_id = ? AND operation_id = ?", loanID, operationID).
		Delete(&models.PaymentRecord{}).Error
}

func (r *paymentRecordRepository) UpdateReceipt(ctx context.Context, id uint, path string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ?", id).
		Update("receipt_path", path).Error
}
