package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/sizif-22/eventy-back/pkg/logger"
)

const defaultVerificationWindow = 10 * time.Minute

// PendingVerificationJobParams configure the expired registration sweep.
type PendingVerificationJobParams struct {
	Logger     *logger.Logger
	Repository pendingCleanupRepo
	// Window is how long a pending registration may wait for its code.
	Window time.Duration
}

type pendingCleanupRepo interface {
	DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewPendingVerificationJob builds the job that removes registrations whose
// verification window lapsed without a confirmed code.
func NewPendingVerificationJob(params PendingVerificationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("events repository required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultVerificationWindow
	}
	return &pendingVerificationJob{
		logg:   params.Logger,
		repo:   params.Repository,
		window: window,
		now:    time.Now,
	}, nil
}

type pendingVerificationJob struct {
	logg   *logger.Logger
	repo   pendingCleanupRepo
	window time.Duration
	now    func() time.Time
}

func (j *pendingVerificationJob) Name() string { return "pending-verification-cleanup" }

func (j *pendingVerificationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	deleted, err := j.repo.DeletePendingOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pending verification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"window":       j.window.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "pending verification cleanup complete")
	return nil
}
