package initialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRuntimeConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  RuntimeConfig
		wantErr string
	}{
		{
			name:   "memory backend needs nothing",
			config: RuntimeConfig{NodeStore: NodeStore_Memory},
		},
		{
			name:   "mongodb backend with uri",
			config: RuntimeConfig{NodeStore: NodeStore_MongoDB, MongoDBURI: "mongodb://localhost:27017"},
		},
		{
			name:    "mongodb backend without uri",
			config:  RuntimeConfig{NodeStore: NodeStore_MongoDB},
			wantErr: "DSENTR_MONGODB_URI",
		},
		{
			name:   "postgresql backend with uri",
			config: RuntimeConfig{NodeStore: NodeStore_PostgreSQL, PostgresURI: "postgres://localhost:5432/dsentr"},
		},
		{
			name:    "postgresql backend without uri",
			config:  RuntimeConfig{NodeStore: NodeStore_PostgreSQL},
			wantErr: "DSENTR_POSTGRES_URI",
		},
		{
			name:    "unknown backend",
			config:  RuntimeConfig{NodeStore: "cassandra"},
			wantErr: "unknown node store backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRuntimeConfig(&tt.config)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
