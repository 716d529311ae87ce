package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLProvider implements the Provider interface using PostgreSQL
type PostgreSQLProvider struct {
	db *sql.DB
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	// Set default port if not specified
	if config.Port == 0 {
		config.Port = 5432
	}

	// Set default SSL mode if not specified
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	// Create connection string
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgreSQLProvider{db: db}, nil
}

// Initialize creates the PostgreSQL table if it doesn't exist
func (p *PostgreSQLProvider) Initialize() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_kv (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BYTEA NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`)

	if err != nil {
		return fmt.Errorf("failed to create workflow_kv table: %w", err)
	}

	return nil
}

// Close cleans up resources
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// Get retrieves the value stored under (namespace, key)
func (p *PostgreSQLProvider) Get(namespace, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(
		"SELECT value FROM workflow_kv WHERE namespace = $1 AND key = $2",
		namespace, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get value: %w", err)
	}

	return value, nil
}

// Put stores a value under (namespace, key)
func (p *PostgreSQLProvider) Put(namespace, key string, value []byte) error {
	_, err := p.db.Exec(
		`INSERT INTO workflow_kv (namespace, key, value, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = $3, updated_at = $4`,
		namespace, key, value, time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to put value: %w", err)
	}

	return nil
}
