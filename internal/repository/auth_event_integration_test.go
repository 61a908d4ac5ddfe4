//go:build integration

package repository

import (
	"testing"

	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/testutil"
)

func TestIntegrationAuthEvents_BulkInsert(t *testing.T) {
	ctx, repo := newUserTestEnv(t)
	if err := testutil.ResetAuthEventsSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset auth_events schema: %v", err)
	}

	userID := "01J0000000000000000000USER"
	events := []*model.AuthEvent{
		testutil.NewTestAuthEvent(t, userID, model.EventLoginSucceeded),
		testutil.NewTestAuthEvent(t, userID, model.EventLoginSucceeded),
		testutil.NewTestAuthEvent(t, userID, model.EventLogout),
		// Failed login with no resolved account
		testutil.NewTestAuthEvent(t, "", model.EventLoginFailed),
	}

	if err := repo.BulkInsertAuthEvents(ctx, events); err != nil {
		t.Fatalf("BulkInsertAuthEvents failed: %v", err)
	}

	logins, err := repo.CountAuthEvents(ctx, userID, model.EventLoginSucceeded)
	if err != nil {
		t.Fatalf("CountAuthEvents failed: %v", err)
	}
	if logins != 2 {
		t.Errorf("login count = %d, want 2", logins)
	}

	all, err := repo.CountAuthEvents(ctx, userID, "")
	if err != nil {
		t.Fatalf("CountAuthEvents failed: %v", err)
	}
	if all != 3 {
		t.Errorf("total count = %d, want 3", all)
	}
}

func TestIntegrationAuthEvents_BulkInsertEmpty(t *testing.T) {
	ctx, repo := newUserTestEnv(t)
	if err := testutil.ResetAuthEventsSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset auth_events schema: %v", err)
	}

	if err := repo.BulkInsertAuthEvents(ctx, nil); err != nil {
		t.Fatalf("BulkInsertAuthEvents with empty batch failed: %v", err)
	}
}
