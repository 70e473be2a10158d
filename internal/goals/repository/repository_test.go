package repository

import "testing"

func TestEveryGoalTypeIsMeasurable(t *testing.T) {
	for _, goalType := range []string{"revenue", "prospects", "deals", "appointments"} {
		if _, ok := measureQueries[goalType]; !ok {
			t.Errorf("no measure query for %q", goalType)
		}
	}
}
