package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProvider(t *testing.T) {
	// Test memory provider
	memoryProvider, err := NewProvider(ProviderConfig{Type: MemoryProviderType})
	assert.NoError(t, err)
	assert.NotNil(t, memoryProvider)
	assert.IsType(t, &MemoryProvider{}, memoryProvider)

	// Test Redis provider with missing config
	_, err = NewProvider(ProviderConfig{Type: RedisProviderType})
	assert.Error(t, err)

	// Test DynamoDB provider with missing config
	_, err = NewProvider(ProviderConfig{Type: DynamoDBProviderType})
	assert.Error(t, err)

	// Test PostgreSQL provider with missing config
	_, err = NewProvider(ProviderConfig{Type: PostgreSQLProviderType})
	assert.Error(t, err)

	// Test unknown provider
	_, err = NewProvider(ProviderConfig{Type: "unknown"})
	assert.Error(t, err)
}
