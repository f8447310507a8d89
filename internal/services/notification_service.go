package services

import (
	"context"
	"time"

	"flowdesk/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notifier delivers a message to a user. The automation engine treats
// delivery as fire-and-forget: a failed Notify never fails an automation.
type Notifier interface {
	Notify(ctx context.Context, userID uint, message, kind string) error
}

// NotificationService Notifier 的数据库实现：写入应用内通知
type NotificationService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewNotificationService(db *gorm.DB, logger *logrus.Logger) *NotificationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotificationService{db: db, logger: logger}
}

func (s *NotificationService) Notify(ctx context.Context, userID uint, message, kind string) error {
	if kind == "" {
		kind = "info"
	}
	n := &models.Notification{
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return err
	}
	s.logger.Infof("notification: user=%d kind=%s %s", userID, kind, message)
	return nil
}

// ListNotifications 按用户返回最近通知
func (s *NotificationService) ListNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead 标记单条通知已读
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
