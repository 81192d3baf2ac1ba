package service

import (
	"context"
	"testing"
	"time"

	"calendar-sync/core/errors"
	"calendar-sync/core/params"
	"calendar-sync/modules/audit/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	appended  []*entity.SyncLogEntry
	appendErr error
	stored    []entity.SyncLogEntry
}

func (f *fakeRepo) Append(_ context.Context, e *entity.SyncLogEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeRepo) ListByUser(_ context.Context, _ uuid.UUID, _ params.QueryParams) ([]entity.SyncLogEntry, int, error) {
	return f.stored, len(f.stored), nil
}

func TestAuditService_Record(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewAuditService(repo)

	require.NoError(t, svc.Record(context.Background(), entity.NewSuccess(uuid.New(), "", entity.ActionConnect, nil)))
	require.Len(t, repo.appended, 1)
	assert.Nil(t, repo.appended[0].AssignmentID)
	assert.NotNil(t, repo.appended[0].Details)

	repo.appendErr = assert.AnError
	err := svc.Record(context.Background(), entity.NewSuccess(uuid.New(), "a1", entity.ActionCreate, nil))
	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCreateFailed, code)
}

func TestAuditService_List(t *testing.T) {
	assignment := "a1"
	msg := "Calendar provider temporarily unavailable"
	repo := &fakeRepo{stored: []entity.SyncLogEntry{{
		ID:           uuid.New(),
		AssignmentID: &assignment,
		Action:       entity.ActionUpdate,
		Status:       entity.StatusFailure,
		ErrorMessage: &msg,
		CreatedAt:    time.Now(),
	}}}

	page, err := NewAuditService(repo).List(context.Background(), uuid.New(), params.QueryParams{PageNumber: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, "a1", page.Items[0].AssignmentID)
	assert.Equal(t, msg, page.Items[0].ErrorMessage)
}
