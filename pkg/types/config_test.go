package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "valid sqlite config",
			config:  Config{Driver: DriverSQLite, DSN: ":memory:"},
			wantErr: nil,
		},
		{
			name:    "valid postgres config",
			config:  Config{Driver: DriverPostgres, DSN: "postgres://localhost/almanac"},
			wantErr: nil,
		},
		{
			name:    "empty driver",
			config:  Config{DSN: ":memory:"},
			wantErr: ErrDriverEmpty,
		},
		{
			name:    "unknown driver",
			config:  Config{Driver: "mysql", DSN: "root@/almanac"},
			wantErr: ErrDriverUnknown,
		},
		{
			name:    "empty dsn",
			config:  Config{Driver: DriverSQLite},
			wantErr: ErrDSNEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
