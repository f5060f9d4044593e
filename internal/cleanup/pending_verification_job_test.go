package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sizif-22/eventy-back/pkg/logger"
)

type fakePendingRepo struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakePendingRepo) DeletePendingOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func newPendingJob(t *testing.T, repo *fakePendingRepo) *pendingVerificationJob {
	t.Helper()
	jobIface, err := NewPendingVerificationJob(PendingVerificationJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewPendingVerificationJob: %v", err)
	}
	job, ok := jobIface.(*pendingVerificationJob)
	if !ok {
		t.Fatalf("expected pendingVerificationJob, got %T", jobIface)
	}
	return job
}

func TestPendingVerificationJobUsesWindowCutoff(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakePendingRepo{deletedRows: 3}
	job := newPendingJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expected := now.Add(-defaultVerificationWindow)
	if !repo.lastCutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestPendingVerificationJobPropagatesErrors(t *testing.T) {
	repo := &fakePendingRepo{err: errors.New("boom")}
	job := newPendingJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
