package testutil

import "testing"

// Given, When and Then name nested subtests so router scenarios read as
// "Given <setup>/When <action>/Then <outcome>" in go test -v output.
func Given(t *testing.T, setup string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+setup, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+outcome, fn)
}
