// Package fixturetest ties fixture servers to the lifetime of a test.
package fixturetest

import (
	"context"
	"testing"

	"github.com/padaiyal/browserfixture/fixture"
)

// Start starts a fixture server and stops it when the test and its subtests
// finish, whether they pass, fail or call t.FailNow.
func Start(t testing.TB, cfg fixture.Config, opts ...fixture.Option) *fixture.Server {
	t.Helper()
	srv, err := fixture.Start(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("Could not start fixture server: %s", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("Could not stop fixture server %s: %s", srv.BaseURL(), err)
		}
	})
	return srv
}
