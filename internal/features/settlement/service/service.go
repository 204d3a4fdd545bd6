package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/validation"
	challengemodels "bytebattle-backend/internal/features/challenge/models"
	challengerepo "bytebattle-backend/internal/features/challenge/repository"
	notificationmodels "bytebattle-backend/internal/features/notification/models"
	participationmodels "bytebattle-backend/internal/features/participation/models"
	participationrepo "bytebattle-backend/internal/features/participation/repository"
	"bytebattle-backend/internal/features/settlement/models"
	usermodels "bytebattle-backend/internal/features/user/models"
	userrepo "bytebattle-backend/internal/features/user/repository"
	"bytebattle-backend/internal/platform/docstore"
)

type SettlementService interface {
	// DeclareWinner settles a challenge: the winner gets the whole pot. A
	// challenge is settled at most once.
	DeclareWinner(ctx context.Context, challengeID, winnerID string, score int64) (*models.Result, error)
	// SettleByHighestScore declares the confirmed participant with the best
	// score the winner; ties go to the earliest submission.
	SettleByHighestScore(ctx context.Context, challengeID string) (*models.Result, error)
}

// Notifier receives settlement events after commit.
type Notifier interface {
	NotifySettlement(ctx context.Context, event notificationmodels.Settlement)
}

type settlementService struct {
	challenges     challengerepo.ChallengeRepository
	participations participationrepo.ParticipationRepository
	users          userrepo.UserRepository
	tx             docstore.Transactor
	notifier       Notifier
	logger         *zap.Logger
	now            func() time.Time
}

func NewSettlementService(
	challenges challengerepo.ChallengeRepository,
	participations participationrepo.ParticipationRepository,
	users userrepo.UserRepository,
	tx docstore.Transactor,
	notifier Notifier,
	logger *zap.Logger,
) SettlementService {
	return &settlementService{
		challenges:     challenges,
		participations: participations,
		users:          users,
		tx:             tx,
		notifier:       notifier,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *settlementService) DeclareWinner(ctx context.Context, challengeID, winnerID string, score int64) (*models.Result, error) {
	if err := validation.ValidateNonNegativeInt(score, "score"); err != nil {
		return nil, apperrors.NewValidationError("score", err.Error())
	}

	var (
		result    *models.Result
		challenge *challengemodels.Challenge
		winner    *usermodels.User
	)
	err := s.tx.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		challenge, err = s.challenges.GetTx(ctx, tx, challengeID)
		if err != nil {
			if errors.Is(err, challengerepo.ErrNotFound) {
				return apperrors.NewChallengeNotFoundError(challengeID)
			}
			return err
		}
		if challenge.HasWinner() {
			return apperrors.New(apperrors.ErrCodeAlreadyHasWinner, "Challenge already has a winner").
				WithDetail("challenge_id", challengeID).
				WithDetail("winner_id", *challenge.WinnerUserID)
		}

		winner, err = s.users.GetTx(ctx, tx, winnerID)
		if err != nil {
			if errors.Is(err, userrepo.ErrNotFound) {
				return apperrors.NewUserNotFoundError(winnerID)
			}
			return err
		}

		participationID := participationmodels.Key(winnerID, challengeID)
		p, err := s.participations.GetTx(ctx, tx, participationID)
		if err != nil {
			if errors.Is(err, participationrepo.ErrNotFound) {
				return apperrors.NewParticipationNotFoundError(participationID)
			}
			return err
		}
		if !p.IsConfirmed() {
			return apperrors.New(apperrors.ErrCodePaymentNotConfirmed, "Winner's payment is not confirmed").
				WithDetail("participation_id", participationID)
		}

		now := s.now().UTC()
		if err := s.challenges.UpdateTx(ctx, tx, challengeID, docstore.Fields{
			challengemodels.FieldWinnerUserID:   winnerID,
			challengemodels.FieldStatus:         challengemodels.StatusPast,
			challengemodels.FieldIsPaidToWinner: true,
			challengemodels.FieldSettledAt:      now,
			challengemodels.FieldUpdatedAt:      now,
		}); err != nil {
			return err
		}
		if err := s.participations.UpdateTx(ctx, tx, participationID, docstore.Fields{
			participationmodels.FieldWinner: true,
			participationmodels.FieldScore:  score,
		}); err != nil {
			return err
		}
		if err := s.users.IncrementTx(ctx, tx, winnerID, usermodels.FieldChallengeWins, 1); err != nil {
			return err
		}
		if err := s.users.IncrementTx(ctx, tx, winnerID, usermodels.FieldTotalEarnings, challenge.TotalPot); err != nil {
			return err
		}

		result = &models.Result{
			ChallengeID: challengeID,
			WinnerID:    winnerID,
			Score:       score,
			PrizeAmount: challenge.TotalPot,
			SettledAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("declare winner", err)
	}

	s.logger.Info("Challenge settled",
		zap.String("challenge_id", challengeID),
		zap.String("winner_id", winnerID),
		zap.Int64("score", score),
		zap.Int64("prize", result.PrizeAmount))

	s.notifier.NotifySettlement(ctx, notificationmodels.Settlement{
		ChallengeID:    challengeID,
		ChallengeTitle: challenge.Title,
		WinnerID:       winnerID,
		WinnerUsername: winner.Username,
		Prize:          result.PrizeAmount,
	})
	return result, nil
}

func (s *settlementService) SettleByHighestScore(ctx context.Context, challengeID string) (*models.Result, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, challengerepo.ErrNotFound) {
			return nil, apperrors.NewChallengeNotFoundError(challengeID)
		}
		return nil, apperrors.NewDatabaseError("get challenge", err)
	}
	if challenge.HasWinner() {
		return nil, apperrors.New(apperrors.ErrCodeAlreadyHasWinner, "Challenge already has a winner").
			WithDetail("challenge_id", challengeID)
	}

	confirmed, err := s.participations.Find(ctx, participationmodels.Filter{
		ChallengeID:   challengeID,
		PaymentStatus: participationmodels.PaymentConfirmed,
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list participations", err)
	}

	candidates := make([]*participationmodels.Participation, 0, len(confirmed))
	for _, p := range confirmed {
		if p.Score != nil {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeNoEligibleWinner, "No confirmed participant has submitted a score").
			WithDetail("challenge_id", challengeID)
	}

	participationmodels.SortByRank(candidates)
	best := candidates[0]
	return s.DeclareWinner(ctx, challengeID, best.UserID, *best.Score)
}
