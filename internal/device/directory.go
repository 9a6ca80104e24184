package device

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/echoear/gateway/internal/session"
)

// Directory resolves (device_id, token) pairs against registered devices.
// Two implementations: an in-memory directory for local development without
// a database, and a Postgres-backed one sharing the reminder store's DB.
type Directory interface {
	// Lookup reports whether token is valid for deviceID.
	Lookup(ctx context.Context, deviceID, token string) (bool, error)
	// Register hashes and stores a new device credential, replacing any
	// existing one for the same device.
	Register(ctx context.Context, deviceID, token string) error
	// ProviderConfig returns the device's per-device provider overrides,
	// decrypting any stored API keys with secretKey. A directory with no
	// override storage (MemoryDirectory) always returns the zero value.
	ProviderConfig(ctx context.Context, deviceID, secretKey string) (session.ProviderConfig, error)
}

// MemoryDirectory is an in-process directory seeded at startup, used when no
// Postgres DSN is configured.
type MemoryDirectory struct {
	mu    sync.RWMutex
	hashes map[string]string
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{hashes: map[string]string{}}
}

func (d *MemoryDirectory) Lookup(_ context.Context, deviceID, token string) (bool, error) {
	d.mu.RLock()
	hash, ok := d.hashes[deviceID]
	d.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return VerifyToken(hash, token), nil
}

func (d *MemoryDirectory) Register(_ context.Context, deviceID, token string) error {
	hash, err := HashToken(token)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.hashes[deviceID] = hash
	d.mu.Unlock()
	return nil
}

// ProviderConfig always returns the zero value: the in-memory directory has
// nowhere to persist per-device overrides.
func (d *MemoryDirectory) ProviderConfig(_ context.Context, _, _ string) (session.ProviderConfig, error) {
	return session.ProviderConfig{}, nil
}

// PostgresDirectory backs the device directory with the same database as the
// reminder store.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory wraps an already-migrated *sql.DB.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, deviceID, token string) (bool, error) {
	var hash string
	err := d.db.QueryRowContext(ctx,
		`SELECT token_hash FROM devices WHERE device_id = $1`, deviceID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return VerifyToken(hash, token), nil
}

func (d *PostgresDirectory) Register(ctx context.Context, deviceID, token string) error {
	hash, err := HashToken(token)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, token_hash, registered_at)
		VALUES ($1, $2, now())
		ON CONFLICT (device_id) DO UPDATE SET token_hash = EXCLUDED.token_hash
	`, deviceID, hash)
	return err
}

// ProviderConfig loads a device's engine overrides and decrypts its stored
// provider keys. Missing rows and blank columns resolve to the zero value,
// which callers treat as "use the global default".
func (d *PostgresDirectory) ProviderConfig(ctx context.Context, deviceID, secretKey string) (session.ProviderConfig, error) {
	var (
		cfg                         session.ProviderConfig
		openaiKeyEnc, anthropicKeyEnc string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT asr_engine, llm_engine, tts_engine, openai_key_enc, openai_url, anthropic_key_enc
		FROM devices WHERE device_id = $1
	`, deviceID).Scan(
		&cfg.ASREngine, &cfg.LLMEngine, &cfg.TTSEngine,
		&openaiKeyEnc, &cfg.OpenAIURL, &anthropicKeyEnc,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ProviderConfig{}, nil
	}
	if err != nil {
		return session.ProviderConfig{}, err
	}

	if openaiKeyEnc != "" {
		cfg.OpenAIKey, err = DecryptSecret(secretKey, openaiKeyEnc)
		if err != nil {
			return session.ProviderConfig{}, err
		}
	}
	if anthropicKeyEnc != "" {
		cfg.AnthropicKey, err = DecryptSecret(secretKey, anthropicKeyEnc)
		if err != nil {
			return session.ProviderConfig{}, err
		}
	}
	return cfg, nil
}
