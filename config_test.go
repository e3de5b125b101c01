package x402

import (
	"testing"
	"time"
)

func TestDefaultTimeouts(t *testing.T) {
	if DefaultTimeouts.LedgerTimeout != 10*time.Second {
		t.Errorf("expected LedgerTimeout to be 10s, got %v", DefaultTimeouts.LedgerTimeout)
	}
	if DefaultTimeouts.FetchTimeout != 30*time.Second {
		t.Errorf("expected FetchTimeout to be 30s, got %v", DefaultTimeouts.FetchTimeout)
	}
	if err := DefaultTimeouts.Validate(); err != nil {
		t.Errorf("default timeouts should validate, got %v", err)
	}
}

func TestTimeoutConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  TimeoutConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  TimeoutConfig{LedgerTimeout: 5 * time.Second, FetchTimeout: 15 * time.Second},
			wantErr: false,
		},
		{
			name:    "zero ledger timeout",
			config:  TimeoutConfig{LedgerTimeout: 0, FetchTimeout: 15 * time.Second},
			wantErr: true,
		},
		{
			name:    "negative ledger timeout",
			config:  TimeoutConfig{LedgerTimeout: -time.Second, FetchTimeout: 15 * time.Second},
			wantErr: true,
		},
		{
			name:    "zero fetch timeout",
			config:  TimeoutConfig{LedgerTimeout: 5 * time.Second, FetchTimeout: 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
