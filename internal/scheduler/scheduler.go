package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"talkquest/internal/models"
)

// lapseTimeout bounds a single lapse run
const lapseTimeout = 5 * time.Minute

// Lapser zeroes streaks that missed a day
type Lapser interface {
	Today() models.Date
	LapseInactive(ctx context.Context, day models.Date) (int64, error)
}

// Scheduler runs the nightly streak lapse job
type Scheduler struct {
	scheduler *gocron.Scheduler
	lapser    Lapser
	at        string
	logger    *zap.Logger
}

// New creates a scheduler that runs daily at the "15:04" time at in loc
func New(lapser Lapser, at string, loc *time.Location, logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		lapser:    lapser,
		at:        at,
		logger:    logger,
	}
}

// Start schedules the jobs and runs them in the background
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(s.at).Do(s.runLapse); err != nil {
		return fmt.Errorf("failed to schedule streak lapse: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("Scheduler started", zap.String("streak_lapse_at", s.at))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runLapse() {
	ctx, cancel := context.WithTimeout(context.Background(), lapseTimeout)
	defer cancel()

	day := s.lapser.Today()
	lapsed, err := s.lapser.LapseInactive(ctx, day)
	if err != nil {
		s.logger.Error("Streak lapse failed", zap.String("day", day.String()), zap.Error(err))
		return
	}
	s.logger.Info("Streak lapse finished", zap.String("day", day.String()), zap.Int64("lapsed", lapsed))
}
