package backend

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashplan/internal/config"
	"cashplan/internal/log"
	"cashplan/internal/sheets"
	gsheet "cashplan/internal/sheets/google"
	"cashplan/internal/sheets/memory"
)

func quietFactory() *Factory {
	return NewFactory(log.New(log.Config{Output: io.Discard}))
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{
		GoogleSpreadsheetID:      "sheet-1",
		GoogleServiceAccountJSON: `{"type":"service_account"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "sheet-1", cfg.Sheets.SpreadsheetID)

	cfg, err = FromAppConfig(&config.Config{SnapshotBackend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)

	_, err = FromAppConfig(&config.Config{SnapshotBackend: "ftp"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none", Config{Type: NoneBackend}, false},
		{"memory", Config{Type: MemoryBackend}, false},
		{"sheets", Config{Type: SheetsBackend, Sheets: gsheet.Config{SpreadsheetID: "id", ServiceAccountFile: "sa.json"}}, false},
		{"sheets without id", Config{Type: SheetsBackend, Sheets: gsheet.Config{ServiceAccountFile: "sa.json"}}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, Sheets: gsheet.Config{SpreadsheetID: "id"}}, true},
		{"unknown", Config{Type: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestSnapshotWriterSelection(t *testing.T) {
	f := quietFactory()
	ctx := context.Background()

	w, err := f.SnapshotWriter(ctx, Config{Type: NoneBackend})
	require.NoError(t, err)
	assert.Nil(t, w, "none backend must yield a nil interface")

	w, err = f.SnapshotWriter(ctx, Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, w)

	fake := memory.New()
	f.newSheets = func(_ context.Context, cfg gsheet.Config) (sheets.SnapshotWriter, error) {
		assert.Equal(t, "id", cfg.SpreadsheetID)
		return fake, nil
	}
	w, err = f.SnapshotWriter(ctx, Config{Type: SheetsBackend, Sheets: gsheet.Config{SpreadsheetID: "id", ServiceAccountJSON: "{}"}})
	require.NoError(t, err)
	assert.Same(t, fake, w)

	f.newSheets = func(context.Context, gsheet.Config) (sheets.SnapshotWriter, error) {
		return nil, errors.New("bad credentials")
	}
	_, err = f.SnapshotWriter(ctx, Config{Type: SheetsBackend, Sheets: gsheet.Config{SpreadsheetID: "id", ServiceAccountJSON: "{}"}})
	assert.ErrorContains(t, err, "bad credentials")
}
