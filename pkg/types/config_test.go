package types

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "auto with empty DataDir is valid at config level",
			config:  Config{Backend: "auto", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "kv with default driver",
			config:  Config{Backend: "kv", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "unknown kv driver returns ErrKVDriverUnknown",
			config:  Config{Backend: "kv", KV: KVConfig{Driver: "localstorage"}},
			wantErr: ErrKVDriverUnknown,
		},
		{
			name:    "redis driver without address",
			config:  Config{Backend: "kv", KV: KVConfig{Driver: "redis"}},
			wantErr: ErrRedisAddrMissing,
		},
		{
			name:    "redis driver with address",
			config:  Config{Backend: "kv", KV: KVConfig{Driver: "redis", RedisAddr: "localhost:6379"}},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}
