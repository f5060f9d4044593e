package messages

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sizif-22/eventy-back/pkg/db/models"
	"github.com/sizif-22/eventy-back/pkg/enums"
	pkgerrors "github.com/sizif-22/eventy-back/pkg/errors"
	"github.com/sizif-22/eventy-back/pkg/pagination"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Message{}))
	return conn
}

func newTestMessage(eventID uuid.UUID, scheduledAt time.Time) *models.Message {
	return &models.Message{
		ID:           uuid.New(),
		EventID:      eventID,
		Content:      "the venue has changed",
		ScheduledAt:  scheduledAt,
		Status:       enums.MessageStatusPending,
		OriginalDate: scheduledAt.Format("2006-01-02 15:04:05"),
		Timezone:     "Africa/Cairo",
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	msg := newTestMessage(uuid.New(), time.Now().Add(time.Hour))
	created, err := repo.Create(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, msg.ID, created.ID)

	got, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, msg.Content, got.Content)
	require.Equal(t, enums.MessageStatusPending, got.Status)

	_, err = repo.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryMarkSentRecordsSnapshot(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	msg := newTestMessage(uuid.New(), time.Now())
	_, err := repo.Create(ctx, msg)
	require.NoError(t, err)

	sentAt := time.Now().UTC().Truncate(time.Second)
	recipients := []string{"a@example.com", "b@example.com"}
	require.NoError(t, repo.MarkSent(ctx, msg.ID, enums.MessageStatusSent, sentAt, recipients))

	got, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, enums.MessageStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	require.Equal(t, 2, got.RecipientCount)
	require.Equal(t, recipients, []string(got.Recipients))

	err = repo.MarkSent(ctx, uuid.New(), enums.MessageStatusSent, sentAt, recipients)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryMarkFailedKeepsMessageEligible(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	msg := newTestMessage(uuid.New(), time.Now())
	_, err := repo.Create(ctx, msg)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, msg.ID, time.Now(), "smtp refused"))

	got, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, enums.MessageStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	require.Equal(t, "smtp refused", *got.LastError)
	require.NotNil(t, got.LastAttemptAt)

	// Failed is not terminal, so the message must surface in recovery.
	unsent, err := repo.FindUnsent(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	require.Equal(t, msg.ID, unsent[0].ID)
}

func TestRepositoryFindUnsentSkipsTerminalStates(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	eventID := uuid.New()

	pending := newTestMessage(eventID, time.Now().Add(2*time.Hour))
	_, err := repo.Create(ctx, pending)
	require.NoError(t, err)

	sent := newTestMessage(eventID, time.Now().Add(-time.Hour))
	_, err = repo.Create(ctx, sent)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSent(ctx, sent.ID, enums.MessageStatusSent, time.Now(), []string{"a@example.com"}))

	partial := newTestMessage(eventID, time.Now().Add(-2*time.Hour))
	_, err = repo.Create(ctx, partial)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSent(ctx, partial.ID, enums.MessageStatusPartiallySent, time.Now(), []string{"a@example.com"}))

	unsent, err := repo.FindUnsent(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	require.Equal(t, pending.ID, unsent[0].ID)
}

func TestRepositoryListByEventPaginates(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	eventID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		msg := newTestMessage(eventID, base)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(ctx, msg)
		require.NoError(t, err)
	}

	first, next, err := repo.ListByEvent(ctx, eventID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, next)

	second, next, err := repo.ListByEvent(ctx, eventID, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Empty(t, next)

	_, _, err = repo.ListByEvent(ctx, eventID, pagination.Params{Limit: 2, Cursor: "!!not-base64!!"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
