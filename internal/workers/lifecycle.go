package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	apperrors "bytebattle-backend/internal/common/errors"
	"bytebattle-backend/internal/common/logger"
	challengemodels "bytebattle-backend/internal/features/challenge/models"
	settlementmodels "bytebattle-backend/internal/features/settlement/models"
)

type ChallengeLister interface {
	List(ctx context.Context, status challengemodels.Status) ([]*challengemodels.Challenge, error)
}

type StatusAdvancer interface {
	Advance(ctx context.Context, id string, from, to challengemodels.Status) (bool, error)
}

type Settler interface {
	SettleByHighestScore(ctx context.Context, challengeID string) (*settlementmodels.Result, error)
}

// ResponseInvalidator drops cached API responses.
type ResponseInvalidator interface {
	InvalidateResponses(ctx context.Context) error
}

// LifecycleWorker moves challenges through upcoming → active → past as their
// dates pass, optionally settling ended challenges by best score.
type LifecycleWorker struct {
	challenges ChallengeLister
	advancer   StatusAdvancer
	settler    Settler
	interval   time.Duration
	autoSettle bool
	now        func() time.Time
	cache      ResponseInvalidator

	scheduler gocron.Scheduler
}

func NewLifecycleWorker(challenges ChallengeLister, advancer StatusAdvancer, settler Settler, interval time.Duration, autoSettle bool) *LifecycleWorker {
	return &LifecycleWorker{
		challenges: challenges,
		advancer:   advancer,
		settler:    settler,
		interval:   interval,
		autoSettle: autoSettle,
		now:        time.Now,
	}
}

// WithResponseCache makes every tick that changes a challenge drop the
// cached responses, which would otherwise show the old status and pot.
func (w *LifecycleWorker) WithResponseCache(cache ResponseInvalidator) *LifecycleWorker {
	w.cache = cache
	return w
}

// Start schedules Tick every interval. Overlapping runs are skipped.
func (w *LifecycleWorker) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.Tick(ctx) }),
		gocron.WithName("challenge-lifecycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}

	w.scheduler = scheduler
	scheduler.Start()
	logger.Info().
		Dur("interval", w.interval).
		Bool("auto_settle", w.autoSettle).
		Msg("Challenge lifecycle worker started")
	return nil
}

func (w *LifecycleWorker) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	logger.Info().Msg("Stopping challenge lifecycle worker...")
	return w.scheduler.Shutdown()
}

// Tick runs one pass over upcoming and active challenges.
func (w *LifecycleWorker) Tick(ctx context.Context) {
	now := w.now()
	changed := w.activate(ctx, now) + w.close(ctx, now)
	if changed == 0 || w.cache == nil {
		return
	}
	if err := w.cache.InvalidateResponses(ctx); err != nil {
		logger.Warn().Err(err).Int("changed", changed).Msg("Failed to invalidate cached responses")
	}
}

func (w *LifecycleWorker) activate(ctx context.Context, now time.Time) int {
	upcoming, err := w.challenges.List(ctx, challengemodels.StatusUpcoming)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list upcoming challenges")
		return 0
	}

	changed := 0
	for _, c := range upcoming {
		if c.StartDate.After(now) {
			continue
		}
		moved, err := w.advancer.Advance(ctx, c.ID, challengemodels.StatusUpcoming, challengemodels.StatusActive)
		if err != nil {
			logger.Error().Err(err).Str("challenge_id", c.ID).Msg("Failed to activate challenge")
			continue
		}
		if moved {
			changed++
			logger.Info().Str("challenge_id", c.ID).Msg("Challenge activated")
		}
	}
	return changed
}

func (w *LifecycleWorker) close(ctx context.Context, now time.Time) int {
	active, err := w.challenges.List(ctx, challengemodels.StatusActive)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list active challenges")
		return 0
	}

	changed := 0
	for _, c := range active {
		if c.EndDate.After(now) {
			continue
		}

		if w.autoSettle && !c.HasWinner() {
			result, err := w.settler.SettleByHighestScore(ctx, c.ID)
			switch {
			case err == nil:
				logger.Info().
					Str("challenge_id", c.ID).
					Str("winner_id", result.WinnerID).
					Int64("prize", result.PrizeAmount).
					Msg("Challenge settled automatically")
				changed++
				continue
			case apperrors.HasCode(err, apperrors.ErrCodeNoEligibleWinner):
				logger.Warn().Str("challenge_id", c.ID).Msg("No eligible winner, closing without settlement")
			case apperrors.HasCode(err, apperrors.ErrCodeAlreadyHasWinner):
				// Settled elsewhere; the status is already past.
				continue
			default:
				logger.Error().Err(err).Str("challenge_id", c.ID).Msg("Failed to settle challenge")
				continue
			}
		}

		moved, err := w.advancer.Advance(ctx, c.ID, challengemodels.StatusActive, challengemodels.StatusPast)
		if err != nil {
			logger.Error().Err(err).Str("challenge_id", c.ID).Msg("Failed to close challenge")
			continue
		}
		if moved {
			changed++
			logger.Info().Str("challenge_id", c.ID).Msg("Challenge closed")
		}
	}
	return changed
}
