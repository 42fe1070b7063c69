package backend

import (
	"fmt"

	"cashplan/internal/config"
	gsheet "cashplan/internal/sheets/google"
)

// Type names a snapshot destination.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
	NoneBackend   Type = "none"
)

func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend, NoneBackend:
		return true
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// Config selects where locked scenarios are published.
type Config struct {
	Type   Type
	Sheets gsheet.Config
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.ResolvedSnapshotBackend())
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid snapshot backend in config: %s", t)
	}

	return Config{
		Type: t,
		Sheets: gsheet.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid snapshot backend: %s", c.Type)
	}
	if c.Type == SheetsBackend {
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID is required for sheets backend")
		}
		if c.Sheets.ServiceAccountJSON == "" && c.Sheets.ServiceAccountFile == "" {
			return fmt.Errorf("service account credentials are required for sheets backend")
		}
	}
	return nil
}
