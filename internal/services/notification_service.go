package services

import (
	"context"
	"time"

	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
)

type NotificationService struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo, now: time.Now}
}

// Notice is one in-app message. LoanID is zero for account level messages.
type Notice struct {
	UserID  uint
	LoanID  uint
	Type    string
	Title   string
	Message string
}

func (s *NotificationService) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Notification, int64, error) {
	if query == nil {
		query = repository.NewListQuery()
	}
	return s.repo.FindByUser(ctx, userID, query)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead is idempotent; other users' notifications are reported as not found
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uint) error {
	found, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	deleted, err := s.repo.DeleteForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) Notify(ctx context.Context, n Notice) error {
	notification := &models.Notification{
		UserID:           n.UserID,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: &n.Type,
	}
	if n.LoanID != 0 {
		loanID := n.LoanID
		notification.LoanID = &loanID
	}
	return s.repo.Create(ctx, notification)
}
