package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/common/validation"
	challengemodels "bytebattle-backend/internal/features/challenge/models"
	challengerepo "bytebattle-backend/internal/features/challenge/repository"
	notificationmodels "bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/participation/models"
	"bytebattle-backend/internal/features/participation/repository"
	usermodels "bytebattle-backend/internal/features/user/models"
	userrepo "bytebattle-backend/internal/features/user/repository"
	"bytebattle-backend/internal/platform/docstore"
)

type ParticipationService interface {
	Enter(ctx context.Context, userID, challengeID string) (*models.Participation, error)
	ConfirmPayment(ctx context.Context, id string) (*models.Participation, error)
	RejectPayment(ctx context.Context, id, reason string) (*models.Participation, error)
	SubmitResult(ctx context.Context, id, callerID string, score *int64, code string) (*models.Participation, error)
	RevealCode(ctx context.Context, id string) (*models.CodeReveal, error)

	Get(ctx context.Context, id string) (*models.Participation, error)
	ListMine(ctx context.Context, userID string) ([]*models.Participation, error)
	AdminList(ctx context.Context, paymentStatus, challengeID string) ([]*models.Participation, error)
	Leaderboard(ctx context.Context, challengeID string) ([]*models.LeaderboardEntry, error)
	ListParticipantIDs(ctx context.Context, challengeID string) ([]string, error)
}

// PotAccumulator adds confirmed entry fees to a challenge pot inside the
// confirming transaction.
type PotAccumulator interface {
	AccumulatePotTx(ctx context.Context, tx docstore.Tx, id string, amount int64) error
}

// Notifier is the best-effort notification sink.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, kind notificationmodels.Type)
	NotifyAdmins(ctx context.Context, title, message string)
}

type participationService struct {
	repo       repository.ParticipationRepository
	challenges challengerepo.ChallengeRepository
	users      userrepo.UserRepository
	pot        PotAccumulator
	tx         docstore.Transactor
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewParticipationService(
	repo repository.ParticipationRepository,
	challenges challengerepo.ChallengeRepository,
	users userrepo.UserRepository,
	pot PotAccumulator,
	tx docstore.Transactor,
	notifier Notifier,
	logger *zap.Logger,
) ParticipationService {
	return &participationService{
		repo:       repo,
		challenges: challenges,
		users:      users,
		pot:        pot,
		tx:         tx,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *participationService) Enter(ctx context.Context, userID, challengeID string) (*models.Participation, error) {
	var (
		p         *models.Participation
		challenge *challengemodels.Challenge
		user      *usermodels.User
	)
	err := s.tx.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		challenge, err = s.challenges.GetTx(ctx, tx, challengeID)
		if err != nil {
			return challengeErr(err, challengeID)
		}
		user, err = s.users.GetTx(ctx, tx, userID)
		if err != nil {
			return userErr(err, userID)
		}
		if user.IsBanned {
			return apperrors.New(apperrors.ErrCodeUserBanned, "User is banned").WithUserID(userID)
		}
		if err := entriesOpen(challenge); err != nil {
			return err
		}

		key := models.Key(userID, challengeID)
		if _, err := s.repo.GetTx(ctx, tx, key); err == nil {
			return alreadyJoined(challengeID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		p = &models.Participation{
			ID:                key,
			UserID:            userID,
			ChallengeID:       challengeID,
			ParticipationCost: challenge.ParticipationCost,
			PaymentStatus:     models.PaymentPending,
			CreatedAt:         s.now().UTC(),
		}
		if err := s.repo.CreateTx(ctx, tx, p); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return alreadyJoined(challengeID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("enter challenge", err)
	}

	s.logger.Info("Participation created",
		zap.String("participation_id", p.ID),
		zap.String("user_id", userID),
		zap.String("challenge_id", challengeID))

	s.notifier.NotifyAdmins(ctx, "Payment awaiting confirmation",
		fmt.Sprintf("%s joined %q and owes %s. Reference: %s",
			user.Username, challenge.Title, money.Format(p.ParticipationCost), p.ID))
	return p, nil
}

func (s *participationService) ConfirmPayment(ctx context.Context, id string) (*models.Participation, error) {
	var (
		p         *models.Participation
		challenge *challengemodels.Challenge
	)
	err := s.tx.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		p, err = s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return participationErr(err, id)
		}
		if p.IsConfirmed() {
			return apperrors.New(apperrors.ErrCodePaymentAlreadyHandled, "Payment already confirmed").
				WithDetail("participation_id", id)
		}
		challenge, err = s.challenges.GetTx(ctx, tx, p.ChallengeID)
		if err != nil {
			return challengeErr(err, p.ChallengeID)
		}
		if challenge.HasWinner() {
			return settled(challenge.ID)
		}
		if _, err := s.users.GetTx(ctx, tx, p.UserID); err != nil {
			return userErr(err, p.UserID)
		}

		now := s.now().UTC()
		if err := s.repo.UpdateTx(ctx, tx, id, docstore.Fields{
			models.FieldPaymentStatus:           models.PaymentConfirmed,
			models.FieldIsPaid:                  true,
			models.FieldPaymentConfirmationDate: now,
		}); err != nil {
			return err
		}
		if err := s.pot.AccumulatePotTx(ctx, tx, p.ChallengeID, p.ParticipationCost); err != nil {
			return err
		}
		if err := s.users.IncrementTx(ctx, tx, p.UserID, usermodels.FieldTotalParticipations, 1); err != nil {
			return err
		}

		p.PaymentStatus = models.PaymentConfirmed
		p.IsPaid = true
		p.PaymentConfirmationDate = &now
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("confirm payment", err)
	}

	s.logger.Info("Payment confirmed",
		zap.String("participation_id", id),
		zap.String("challenge_id", p.ChallengeID),
		zap.Int64("amount", p.ParticipationCost))

	s.notifier.Notify(ctx, p.UserID, "Payment confirmed",
		fmt.Sprintf("Your payment of %s for %q was confirmed. Good luck!",
			money.Format(p.ParticipationCost), challenge.Title),
		notificationmodels.TypePayment)
	return p, nil
}

func (s *participationService) RejectPayment(ctx context.Context, id, reason string) (*models.Participation, error) {
	var p *models.Participation
	err := s.tx.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		p, err = s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return participationErr(err, id)
		}
		if p.IsConfirmed() {
			return apperrors.New(apperrors.ErrCodePaymentAlreadyHandled, "Payment already confirmed").
				WithDetail("participation_id", id)
		}

		now := s.now().UTC()
		if err := s.repo.UpdateTx(ctx, tx, id, docstore.Fields{
			models.FieldPaymentStatus:     models.PaymentRejected,
			models.FieldIsPaid:            false,
			models.FieldPaymentRejectedAt: now,
			models.FieldRejectionReason:   reason,
		}); err != nil {
			return err
		}
		p.PaymentStatus = models.PaymentRejected
		p.PaymentRejectedAt = &now
		p.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("reject payment", err)
	}

	s.logger.Info("Payment rejected", zap.String("participation_id", id), zap.String("reason", reason))

	message := "Your payment could not be confirmed."
	if reason != "" {
		message += " Reason: " + reason
	}
	s.notifier.Notify(ctx, p.UserID, "Payment rejected", message, notificationmodels.TypePayment)
	return p, nil
}

func (s *participationService) SubmitResult(ctx context.Context, id, callerID string, score *int64, code string) (*models.Participation, error) {
	var p *models.Participation
	err := s.tx.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		p, err = s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return participationErr(err, id)
		}
		if p.UserID != callerID {
			return apperrors.New(apperrors.ErrCodeNotOwner, "You can only submit results for your own participation").
				WithUserID(callerID)
		}
		if err := validation.ValidateCode(code); err != nil {
			return apperrors.New(apperrors.ErrCodeCodeTooLong, err.Error()).
				WithDetail("field", "code").
				WithDetail("max_length", validation.MaxCodeLength)
		}
		if score == nil {
			return apperrors.NewValidationError("score", "is required")
		}
		if err := validation.ValidateNonNegativeInt(*score, "score"); err != nil {
			return apperrors.NewValidationError("score", err.Error())
		}
		if !p.IsPaid {
			return apperrors.New(apperrors.ErrCodePaymentNotConfirmed, "Payment not confirmed").
				WithDetail("participation_id", id)
		}

		challenge, err := s.challenges.GetTx(ctx, tx, p.ChallengeID)
		if err != nil {
			return challengeErr(err, p.ChallengeID)
		}
		if err := entriesOpen(challenge); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.repo.UpdateTx(ctx, tx, id, docstore.Fields{
			models.FieldScore:          *score,
			models.FieldCode:           code,
			models.FieldSubmissionDate: now,
		}); err != nil {
			return err
		}
		p.Score = score
		p.Code = code
		p.SubmissionDate = &now
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("submit result", err)
	}

	s.logger.Info("Result submitted",
		zap.String("participation_id", id),
		zap.Int64("score", *score),
		zap.Int("code_length", len(code)))
	return p, nil
}

func (s *participationService) RevealCode(ctx context.Context, id string) (*models.CodeReveal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	challenge, err := s.challenges.GetByID(ctx, p.ChallengeID)
	if err != nil {
		return nil, challengeErr(err, p.ChallengeID)
	}
	if challenge.Status != challengemodels.StatusPast {
		return nil, apperrors.New(apperrors.ErrCodeCodeHidden, "Code is only visible after the challenge has ended").
			WithDetail("challenge_id", challenge.ID)
	}

	reveal := &models.CodeReveal{ParticipationID: p.ID, Code: p.Code}
	user, err := s.users.GetByID(ctx, p.UserID)
	switch {
	case err == nil:
		reveal.Username = user.Username
	case errors.Is(err, userrepo.ErrNotFound):
	default:
		return nil, apperrors.NewDatabaseError("reveal code", err)
	}
	return reveal, nil
}

func (s *participationService) Get(ctx context.Context, id string) (*models.Participation, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, participationErr(err, id)
	}
	return p, nil
}

func (s *participationService) ListMine(ctx context.Context, userID string) ([]*models.Participation, error) {
	items, err := s.repo.Find(ctx, models.Filter{UserID: userID})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list participations", err)
	}
	return items, nil
}

func (s *participationService) AdminList(ctx context.Context, paymentStatus, challengeID string) ([]*models.Participation, error) {
	status := models.PaymentStatus(paymentStatus)
	if status != "" && !status.Valid() {
		return nil, apperrors.NewValidationError("paymentStatus", "must be one of pending, confirmed, rejected")
	}
	items, err := s.repo.Find(ctx, models.Filter{ChallengeID: challengeID, PaymentStatus: status})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list participations", err)
	}
	return items, nil
}

// Leaderboard ranks confirmed participations with a positive score. Equal
// scores are ordered by earlier submission.
func (s *participationService) Leaderboard(ctx context.Context, challengeID string) ([]*models.LeaderboardEntry, error) {
	if _, err := s.challenges.GetByID(ctx, challengeID); err != nil {
		return nil, challengeErr(err, challengeID)
	}
	items, err := s.repo.Scored(ctx, challengeID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("leaderboard", err)
	}
	models.SortByRank(items)

	entries := make([]*models.LeaderboardEntry, 0, len(items))
	for i, p := range items {
		entry := &models.LeaderboardEntry{
			Rank:            i + 1,
			ParticipationID: p.ID,
			UserID:          p.UserID,
			Score:           p.ScoreValue(),
			SubmissionDate:  p.SubmissionDate,
			Winner:          p.Winner,
		}
		user, err := s.users.GetByID(ctx, p.UserID)
		switch {
		case err == nil:
			entry.Username = user.Username
			entry.JudgeUsername = user.JudgeUsername
		case !errors.Is(err, userrepo.ErrNotFound):
			return nil, apperrors.NewDatabaseError("leaderboard", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *participationService) ListParticipantIDs(ctx context.Context, challengeID string) ([]string, error) {
	items, err := s.repo.Find(ctx, models.Filter{ChallengeID: challengeID})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list participants", err)
	}
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func entriesOpen(c *challengemodels.Challenge) error {
	if c.HasWinner() {
		return settled(c.ID)
	}
	if c.Status != challengemodels.StatusActive {
		return apperrors.New(apperrors.ErrCodeChallengeNotActive, "Challenge is not active").
			WithDetail("challenge_id", c.ID).
			WithDetail("status", string(c.Status))
	}
	return nil
}

func settled(challengeID string) error {
	return apperrors.New(apperrors.ErrCodeChallengeSettled, "Challenge is already settled").
		WithDetail("challenge_id", challengeID)
}

func alreadyJoined(challengeID string) error {
	return apperrors.New(apperrors.ErrCodeAlreadyJoined, "User already participates in this challenge").
		WithDetail("challenge_id", challengeID)
}

func participationErr(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewParticipationNotFoundError(id)
	}
	return apperrors.NewDatabaseError("get participation", err)
}

func challengeErr(err error, id string) error {
	if errors.Is(err, challengerepo.ErrNotFound) {
		return apperrors.NewChallengeNotFoundError(id)
	}
	return apperrors.NewDatabaseError("get challenge", err)
}

func userErr(err error, id string) error {
	if errors.Is(err, userrepo.ErrNotFound) {
		return apperrors.NewUserNotFoundError(id)
	}
	return apperrors.NewDatabaseError("get user", err)
}
