package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	User          UserRepository
	RefreshToken  RefreshTokenRepository
	Loan          LoanRepository
	Installment   InstallmentRepository
	PaymentRecord PaymentRecordRepository
	Notification  NotificationRepository
	Audit         AuditRepository
	Tx            UnitOfWork
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		RefreshToken:  NewRefreshTokenRepository(db),
		Loan:          NewLoanRepository(db),
		Installment:   NewInstallmentRepository(db),
		PaymentRecord: NewPaymentRecordRepository(db),
		Notification:  NewNotificationRepository(db),
		Audit:         NewAuditRepository(db),
		Tx:            NewUnitOfWork(db),
	}
}

// UnitOfWork runs fn against repositories bound to a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(r *Repositories) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a gorm backed unit of work
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(r *Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
