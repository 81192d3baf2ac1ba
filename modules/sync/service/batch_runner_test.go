package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"calendar-sync/core/errors"
	auditEntity "calendar-sync/modules/audit/entity"
	"calendar-sync/modules/sync/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestSyncAll_PartialFailure(t *testing.T) {
	h := newHarness(Config{}, assignment("a1"), assignment("a2"), assignment("a3"))
	h.cal.failOn[2] = &googleapi.Error{Code: http.StatusInternalServerError, Message: "backend error"}

	res, err := h.svc.SyncAll(context.Background(), h.userID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "a2")

	assert.Equal(t, 3, h.cal.inserts, "the third candidate is still attempted")
	assert.Contains(t, h.mappings.rows, "a1")
	assert.NotContains(t, h.mappings.rows, "a2")
	assert.Contains(t, h.mappings.rows, "a3")
	assert.Equal(t, 1, h.clients.getCalls)

	var fullSync []*auditEntity.SyncLogEntry
	for _, e := range h.audit.entries {
		if e.Action == auditEntity.ActionFullSync {
			fullSync = append(fullSync, e)
		}
	}
	require.Len(t, fullSync, 1)
	assert.Equal(t, auditEntity.StatusFailure, fullSync[0].Status)
	assert.Equal(t, 2, fullSync[0].Details["synced"])
	assert.Equal(t, 1, fullSync[0].Details["failed"])
	assert.Equal(t, res.RunID, fullSync[0].Details["run_id"])
	assert.Len(t, res.RunID, 12)
}

func TestSyncAll_ProcessesInCandidateOrder(t *testing.T) {
	h := newHarness(Config{}, assignment("a3"), assignment("a1"), assignment("a2"))

	res, err := h.svc.SyncAll(context.Background(), h.userID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Synced)
	assert.Empty(t, res.Errors)

	var order []string
	for _, e := range h.audit.entries {
		if e.AssignmentID != nil {
			order = append(order, *e.AssignmentID)
		}
	}
	assert.Equal(t, []string{"a3", "a1", "a2"}, order)
	assert.Equal(t, auditEntity.StatusSuccess, h.audit.entries[len(h.audit.entries)-1].Status)
}

func TestSyncAll_ValidationFailureDoesNotAbort(t *testing.T) {
	bad := assignment("bad")
	bad.Title = ""
	h := newHarness(Config{}, assignment("a1"), bad, assignment("a2"))

	res, err := h.svc.SyncAll(context.Background(), h.userID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, h.cal.inserts)
	assert.Contains(t, res.Errors[0], "bad: invalid assignment: title")
}

func TestSyncAll_ErrorListIsBounded(t *testing.T) {
	var candidates []entity.Assignment
	for i := 1; i <= 5; i++ {
		candidates = append(candidates, assignment(fmt.Sprintf("a%d", i)))
	}
	h := newHarness(Config{MaxBatchErrors: 2}, candidates...)
	for i := 1; i <= 5; i++ {
		h.cal.failOn[i] = &googleapi.Error{Code: http.StatusBadGateway}
	}

	res, err := h.svc.SyncAll(context.Background(), h.userID)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Failed)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 5, h.cal.inserts)
}

func TestSyncAll_NotConnectedShortCircuits(t *testing.T) {
	h := newHarness(Config{}, assignment("a1"))
	h.clients.connected = false

	_, err := h.svc.SyncAll(context.Background(), h.userID)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrCalendarNotConnected, code)
	assert.Zero(t, h.cal.callCount())
	assert.Empty(t, h.audit.entries)
}

func TestSyncAll_NoCandidates(t *testing.T) {
	h := newHarness(Config{})

	res, err := h.svc.SyncAll(context.Background(), h.userID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Errors)
	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, auditEntity.ActionFullSync, h.audit.entries[0].Action)
}
