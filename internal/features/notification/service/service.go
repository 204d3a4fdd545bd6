package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/notification/repository"
	usermodels "bytebattle-backend/internal/features/user/models"
	userrepo "bytebattle-backend/internal/features/user/repository"
	"bytebattle-backend/internal/platform/docstore"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type NotificationService interface {
	// Handle turns a queued event into stored notifications.
	Handle(ctx context.Context, event models.Event) error

	List(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, callerID string) (*models.Notification, error)
	Delete(ctx context.Context, id, callerID string) error
	Create(ctx context.Context, req *models.CreateRequest) (*models.Notification, error)
}

// ParticipantLister returns the user ids of everyone who entered a challenge.
type ParticipantLister interface {
	ListParticipantIDs(ctx context.Context, challengeID string) ([]string, error)
}

type notificationService struct {
	repo         repository.NotificationRepository
	users        userrepo.UserRepository
	participants ParticipantLister
	logger       *zap.Logger
	now          func() time.Time
}

func NewNotificationService(
	repo repository.NotificationRepository,
	users userrepo.UserRepository,
	participants ParticipantLister,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		repo:         repo,
		users:        users,
		participants: participants,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *notificationService) Handle(ctx context.Context, event models.Event) error {
	switch event.Kind {
	case models.EventUser:
		return s.deliver(ctx, event.ID, event.UserID, event.Title, event.Message, event.Type)

	case models.EventAdmins:
		admins, err := s.users.ListByRole(ctx, usermodels.RoleAdmin)
		if err != nil {
			return fmt.Errorf("list admins: %w", err)
		}
		var errs []error
		for _, admin := range admins {
			if err := s.deliver(ctx, event.ID, admin.ID, event.Title, event.Message, models.TypeAdmin); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case models.EventSettlement:
		if event.Settlement == nil {
			return fmt.Errorf("settlement event %s has no payload", event.ID)
		}
		return s.settlement(ctx, event.ID, event.Settlement)
	}
	return fmt.Errorf("unknown event kind %q", event.Kind)
}

func (s *notificationService) settlement(ctx context.Context, eventID string, st *models.Settlement) error {
	var errs []error
	err := s.deliver(ctx, eventID, st.WinnerID,
		"You won!",
		fmt.Sprintf("Congratulations! You won %q and receive %s.", st.ChallengeTitle, money.Format(st.Prize)),
		models.TypeWinner)
	if err != nil {
		errs = append(errs, err)
	}

	ids, err := s.participants.ListParticipantIDs(ctx, st.ChallengeID)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list participants: %w", err))...)
	}
	for _, id := range ids {
		if id == st.WinnerID {
			continue
		}
		err := s.deliver(ctx, eventID, id,
			"Challenge finished",
			fmt.Sprintf("%q has ended. The winner is %s.", st.ChallengeTitle, st.WinnerUsername),
			models.TypeChallenge)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deliver stores one notification. The id is derived from the event so a
// redelivered event does not duplicate it.
func (s *notificationService) deliver(ctx context.Context, eventID, userID, title, message string, kind models.Type) error {
	if userID == "" {
		return errors.New("notification without recipient")
	}
	id := docstore.NewID()
	if eventID != "" {
		id = eventID + "_" + userID
	}

	err := s.repo.Create(ctx, &models.Notification{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      kind,
		CreatedAt: s.now().UTC(),
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		s.logger.Debug("Notification already delivered", zap.String("notification_id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("store notification for %s: %w", userID, err)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	items, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list notifications", err)
	}
	return items, nil
}

func (s *notificationService) owned(ctx context.Context, id, callerID string) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeNotificationNotFound, "Notification not found").
				WithDetail("notification_id", id)
		}
		return nil, apperrors.NewDatabaseError("get notification", err)
	}
	if n.UserID != callerID {
		return nil, apperrors.New(apperrors.ErrCodeNotOwner, "Not your notification")
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, callerID string) (*models.Notification, error) {
	n, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	now := s.now().UTC()
	if err := s.repo.Update(ctx, id, docstore.Fields{
		models.FieldIsRead: true,
		models.FieldReadAt: now,
	}); err != nil {
		return nil, apperrors.NewDatabaseError("mark notification read", err)
	}
	n.IsRead = true
	n.ReadAt = &now
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.owned(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewDatabaseError("delete notification", err)
	}
	return nil
}

func (s *notificationService) Create(ctx context.Context, req *models.CreateRequest) (*models.Notification, error) {
	kind := models.TypeAdmin
	if req.Type != "" {
		kind = models.Type(req.Type)
	}
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("type", "unknown notification type")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.NewValidationError("title", "must not be blank")
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, apperrors.NewUserNotFoundError(req.UserID)
		}
		return nil, apperrors.NewDatabaseError("get user", err)
	}

	n := &models.Notification{
		ID:        docstore.NewID(),
		UserID:    req.UserID,
		Title:     strings.TrimSpace(req.Title),
		Message:   req.Message,
		Type:      kind,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperrors.NewDatabaseError("create notification", err)
	}

	s.logger.Info("Notification created by admin",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID))
	return n, nil
}
