// Package bootstraptest provides ephemeral databases for tests.
package bootstraptest

import (
	"context"
	"testing"

	"github.com/koustreak/quizmeet/internal/bootstrap"
)

// Postgres provisions a migrated PostgreSQL container for t and closes it
// when the test finishes. Any bootstrap failure, including the readiness
// deadline, fails the test immediately. Skipped with -short.
func Postgres(t testing.TB, opts ...bootstrap.EphemeralOption) *bootstrap.Ephemeral {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	e, err := bootstrap.NewEphemeral(context.Background(), &bootstrap.PostgresContainer{}, opts...)
	if err != nil {
		t.Fatalf("ephemeral postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Logf("closing ephemeral postgres: %v", err)
		}
	})
	return e
}
