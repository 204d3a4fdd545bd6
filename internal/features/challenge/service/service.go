package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/common/validation"
	"bytebattle-backend/internal/features/challenge/models"
	"bytebattle-backend/internal/features/challenge/repository"
	"bytebattle-backend/internal/platform/docstore"
)

type ChallengeService interface {
	Create(ctx context.Context, creatorID string, input *models.ChallengeInput) (*models.Challenge, error)
	Get(ctx context.Context, id string) (*models.Challenge, error)
	List(ctx context.Context, status string) ([]*models.Challenge, error)
	Update(ctx context.Context, id string, input *models.ChallengeInput) (*models.Challenge, error)
	SetStatus(ctx context.Context, id, status string) (*models.Challenge, error)

	// Advance moves the challenge from one status to another only while the
	// stored status is still from. It reports whether the move happened.
	Advance(ctx context.Context, id string, from, to models.Status) (bool, error)

	// AccumulatePot adds amount to the pot with a standalone atomic
	// increment, for callers that hold no transaction. Payment confirmation
	// uses AccumulatePotTx so the pot moves in the same commit as the payment.
	AccumulatePot(ctx context.Context, id string, amount int64) error
	AccumulatePotTx(ctx context.Context, tx docstore.Tx, id string, amount int64) error
}

type challengeService struct {
	repo   repository.ChallengeRepository
	tx     docstore.Transactor
	logger *zap.Logger
	now    func() time.Time
}

func NewChallengeService(repo repository.ChallengeRepository, tx docstore.Transactor, logger *zap.Logger) ChallengeService {
	return &challengeService{
		repo:   repo,
		tx:     tx,
		logger: logger,
		now:    time.Now,
	}
}

func (s *challengeService) Create(ctx context.Context, creatorID string, input *models.ChallengeInput) (*models.Challenge, error) {
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		return nil, apperrors.NewValidationError("title", "is required")
	}
	if input.Description == nil || strings.TrimSpace(*input.Description) == "" {
		return nil, apperrors.NewValidationError("description", "is required")
	}
	if input.StartDate == nil || input.EndDate == nil {
		return nil, apperrors.NewValidationError("startDate", "start and end dates are required")
	}
	if input.ParticipationCost == nil {
		return nil, apperrors.NewValidationError("participationCost", "is required")
	}

	title := strings.TrimSpace(*input.Title)
	if err := validation.ValidateTitle(title); err != nil {
		return nil, apperrors.NewValidationError("title", err.Error())
	}
	if err := validation.ValidateDescription(*input.Description); err != nil {
		return nil, apperrors.NewValidationError("description", err.Error())
	}
	start, end, err := parsePeriod(*input.StartDate, *input.EndDate)
	if err != nil {
		return nil, err
	}
	cost, err := parseCost(*input.ParticipationCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Challenge{
		ID:                docstore.NewID(),
		Title:             title,
		Description:       *input.Description,
		StartDate:         start,
		EndDate:           end,
		ParticipationCost: cost,
		Status:            models.StatusUpcoming,
		CreatedBy:         creatorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, apperrors.NewDatabaseError("create challenge", err)
	}

	s.logger.Info("Challenge created",
		zap.String("challenge_id", c.ID),
		zap.String("created_by", creatorID),
		zap.Int64("participation_cost", cost))
	return c, nil
}

func (s *challengeService) Get(ctx context.Context, id string) (*models.Challenge, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, id, "get challenge")
	}
	return c, nil
}

func (s *challengeService) List(ctx context.Context, status string) ([]*models.Challenge, error) {
	st := models.Status(status)
	if st != "" && !st.Valid() {
		return nil, apperrors.NewValidationError("status", "must be one of upcoming, active, past")
	}
	items, err := s.repo.List(ctx, st)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list challenges", err)
	}
	return items, nil
}

func (s *challengeService) Update(ctx context.Context, id string, input *models.ChallengeInput) (*models.Challenge, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.HasWinner() {
		return nil, apperrors.New(apperrors.ErrCodeChallengeSettled, "Challenge is already settled").
			WithDetail("challenge_id", id)
	}

	fields := docstore.Fields{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validation.ValidateTitle(title); err != nil {
			return nil, apperrors.NewValidationError("title", err.Error())
		}
		fields["title"] = title
	}
	if input.Description != nil {
		if err := validation.ValidateDescription(*input.Description); err != nil {
			return nil, apperrors.NewValidationError("description", err.Error())
		}
		fields["description"] = *input.Description
	}
	if input.StartDate != nil || input.EndDate != nil {
		start, end := current.StartDate.Format(time.RFC3339Nano), current.EndDate.Format(time.RFC3339Nano)
		if input.StartDate != nil {
			start = *input.StartDate
		}
		if input.EndDate != nil {
			end = *input.EndDate
		}
		startAt, endAt, err := parsePeriod(start, end)
		if err != nil {
			return nil, err
		}
		fields[models.FieldStartDate] = startAt
		fields[models.FieldEndDate] = endAt
	}
	if input.ParticipationCost != nil {
		cost, err := parseCost(*input.ParticipationCost)
		if err != nil {
			return nil, err
		}
		fields["participationCost"] = cost
	}
	if len(fields) == 0 {
		return current, nil
	}

	fields[models.FieldUpdatedAt] = s.now().UTC()
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, mapRepoErr(err, id, "update challenge")
	}
	s.logger.Info("Challenge updated", zap.String("challenge_id", id), zap.Int("fields", len(fields)-1))
	return s.Get(ctx, id)
}

// SetStatus is an administrative override: any status can be assigned.
func (s *challengeService) SetStatus(ctx context.Context, id, status string) (*models.Challenge, error) {
	st := models.Status(strings.TrimSpace(status))
	if !st.Valid() {
		return nil, apperrors.NewValidationError("status", "must be one of upcoming, active, past")
	}
	err := s.repo.Update(ctx, id, docstore.Fields{
		models.FieldStatus:    st,
		models.FieldUpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, mapRepoErr(err, id, "set challenge status")
	}
	s.logger.Info("Challenge status set", zap.String("challenge_id", id), zap.String("status", string(st)))
	return s.Get(ctx, id)
}

func (s *challengeService) Advance(ctx context.Context, id string, from, to models.Status) (bool, error) {
	moved := false
	err := s.tx.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		moved = false
		c, err := s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status != from {
			return nil
		}
		moved = true
		return s.repo.UpdateTx(ctx, tx, id, docstore.Fields{
			models.FieldStatus:    to,
			models.FieldUpdatedAt: s.now().UTC(),
		})
	})
	if err != nil {
		return false, mapRepoErr(err, id, "advance challenge")
	}
	if moved {
		s.logger.Info("Challenge advanced",
			zap.String("challenge_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	}
	return moved, nil
}

func (s *challengeService) AccumulatePot(ctx context.Context, id string, amount int64) error {
	if amount < 0 {
		return apperrors.NewValidationError("amount", "must not be negative")
	}
	if err := s.repo.IncrementPot(ctx, id, amount); err != nil {
		return mapRepoErr(err, id, "accumulate pot")
	}
	return nil
}

func (s *challengeService) AccumulatePotTx(ctx context.Context, tx docstore.Tx, id string, amount int64) error {
	if amount < 0 {
		return apperrors.NewValidationError("amount", "must not be negative")
	}
	return s.repo.IncrementPotTx(ctx, tx, id, amount)
}

func parsePeriod(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := validation.ParseDate(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("startDate", err.Error())
	}
	end, err := validation.ParseDate(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("endDate", err.Error())
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("endDate", "must be after start date")
	}
	return start, end, nil
}

func parseCost(raw decimal.Decimal) (int64, error) {
	cost, err := money.FromDecimal(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("participationCost", err.Error())
	}
	return cost, nil
}

func mapRepoErr(err error, id, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewChallengeNotFoundError(id)
	}
	return apperrors.NewDatabaseError(op, err)
}
