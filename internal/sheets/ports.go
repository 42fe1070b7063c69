package sheets

import (
	"context"
	"strings"
	"unicode/utf8"

	"cashplan/internal/export"
)

// Ports for outbound adapters.
type (
	// SnapshotWriter publishes the tables of a scenario to an external
	// spreadsheet and returns a reference to where they were written.
	SnapshotWriter interface {
		WriteSnapshot(ctx context.Context, d export.Data) (ref string, err error)
	}
)

// maxScenarioTitle keeps tab titles well under the 100 character limit.
const maxScenarioTitle = 60

// TabTitle names the tab holding one table of a scenario snapshot,
// e.g. "Q1 plan - Weekly Summary".
func TabTitle(scenarioName, table string) string {
	name := strings.TrimSpace(strings.NewReplacer("'", "", "!", "", "\n", " ").Replace(scenarioName))
	if name == "" {
		name = "Scenario"
	}
	if utf8.RuneCountInString(name) > maxScenarioTitle {
		name = strings.TrimSpace(string([]rune(name)[:maxScenarioTitle]))
	}
	return name + " - " + table
}
