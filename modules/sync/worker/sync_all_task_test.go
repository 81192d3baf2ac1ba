package worker

import (
	"context"
	"errors"
	"testing"

	"calendar-sync/modules/sync/dto"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncService struct {
	calledWith uuid.UUID
	err        error
}

func (f *fakeSyncService) SyncOne(context.Context, uuid.UUID, string) (*dto.SyncResult, error) {
	return nil, nil
}

func (f *fakeSyncService) SyncAll(_ context.Context, userID uuid.UUID) (*dto.BatchResult, error) {
	f.calledWith = userID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.BatchResult{Synced: 1, Total: 1, Errors: []string{}}, nil
}

func (f *fakeSyncService) DeleteSync(context.Context, uuid.UUID, string) (*dto.DeleteResult, error) {
	return nil, nil
}

func (f *fakeSyncService) GetMappingStatus(context.Context, uuid.UUID, string) (*dto.MappingStatusResponse, error) {
	return nil, nil
}

func TestSyncAllHandler_ProcessTask(t *testing.T) {
	userID := uuid.New()
	task, err := NewSyncAllTask(userID)
	require.NoError(t, err)
	assert.Equal(t, TypeSyncAll, task.Type())

	svc := &fakeSyncService{}
	require.NoError(t, NewSyncAllHandler(svc).ProcessTask(context.Background(), task))
	assert.Equal(t, userID, svc.calledWith)

	svc.err = errors.New("not connected")
	assert.Error(t, NewSyncAllHandler(svc).ProcessTask(context.Background(), task))
}

func TestSyncAllHandler_BadPayloadSkipsRetry(t *testing.T) {
	svc := &fakeSyncService{}
	err := NewSyncAllHandler(svc).ProcessTask(context.Background(), asynq.NewTask(TypeSyncAll, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, uuid.Nil, svc.calledWith)
}
