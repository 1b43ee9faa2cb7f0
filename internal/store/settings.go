package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// SettingType declares how a stored setting value is coerced on read.
type SettingType string

const (
	TypeString  SettingType = "string"
	TypeInteger SettingType = "integer"
	TypeFloat   SettingType = "float"
	TypeBoolean SettingType = "boolean"
	TypeArray   SettingType = "array"
)

// Well-known setting keys.
const (
	SettingBotName       = "bot_name"
	SettingOwnerID       = "telegram_owner_id"
	SettingChatID        = "telegram_chat_id"
	SettingOffset        = "telegram_offset"
	SettingUserFirstName = "user_first_name"
	SettingUserLastName  = "user_last_name"
)

type cachedSetting struct {
	value string
	typ   SettingType
}

// Settings is a write-through typed key/value store. Values are cached
// in memory after the first load; every Set updates both the database
// and the cache under the same lock so in-process reads never go stale.
type Settings struct {
	store *Store

	mu     sync.RWMutex
	cache  map[string]cachedSetting
	loaded bool
}

func newSettings(s *Store) *Settings {
	return &Settings{store: s, cache: map[string]cachedSetting{}}
}

// Load populates the cache from the database. Called lazily by the
// getters; safe to call again to force a refresh.
func (s *Settings) Load(ctx context.Context) error {
	rows, err := s.store.db.QueryContext(ctx, `SELECT key, value, type FROM settings`)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	cache := map[string]cachedSetting{}
	for rows.Next() {
		var key, value, typ string
		if err := rows.Scan(&key, &value, &typ); err != nil {
			return fmt.Errorf("scan setting: %w", err)
		}
		cache[key] = cachedSetting{value: value, typ: SettingType(typ)}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = cache
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Settings) ensureLoaded(ctx context.Context) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		_ = s.Load(ctx)
	}
}

func (s *Settings) raw(ctx context.Context, key string) (cachedSetting, bool) {
	s.ensureLoaded(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[key]
	return c, ok
}

// GetString returns the setting coerced to string, or def when unset.
func (s *Settings) GetString(ctx context.Context, key, def string) string {
	c, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	return c.value
}

// GetInt returns the setting coerced to int, or def when unset or unparsable.
func (s *Settings) GetInt(ctx context.Context, key string, def int) int {
	c, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(c.value))
	if err != nil {
		return def
	}
	return n
}

// GetInt64 returns the setting coerced to int64, or def when unset.
func (s *Settings) GetInt64(ctx context.Context, key string, def int64) int64 {
	c, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(c.value), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// GetFloat returns the setting coerced to float64, or def when unset.
func (s *Settings) GetFloat(ctx context.Context, key string, def float64) float64 {
	c, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(c.value), 64)
	if err != nil {
		return def
	}
	return f
}

// GetBool returns the setting coerced to bool, or def when unset.
func (s *Settings) GetBool(ctx context.Context, key string, def bool) bool {
	c, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(c.value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off", "":
		return false
	default:
		return def
	}
}

// GetStrings returns an array-typed setting, or nil when unset.
func (s *Settings) GetStrings(ctx context.Context, key string) []string {
	c, ok := s.raw(ctx, key)
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(c.value), &out); err != nil {
		return nil
	}
	return out
}

// Set upserts a setting, inferring the declared type from the Go value,
// and refreshes the in-memory cache in the same critical section.
func (s *Settings) Set(ctx context.Context, key string, value any) error {
	var stored string
	var typ SettingType

	switch v := value.(type) {
	case string:
		stored, typ = v, TypeString
	case int:
		stored, typ = strconv.Itoa(v), TypeInteger
	case int64:
		stored, typ = strconv.FormatInt(v, 10), TypeInteger
	case float64:
		stored, typ = strconv.FormatFloat(v, 'g', -1, 64), TypeFloat
	case bool:
		stored, typ = strconv.FormatBool(v), TypeBoolean
	case []string:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode setting %q: %w", key, err)
		}
		stored, typ = string(b), TypeArray
	default:
		return fmt.Errorf("unsupported setting type %T for key %q", value, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, type) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, type = excluded.type, updated_at = CURRENT_TIMESTAMP`,
		key, stored, string(typ),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	s.cache[key] = cachedSetting{value: stored, typ: typ}
	return nil
}

// Has reports whether the setting exists.
func (s *Settings) Has(ctx context.Context, key string) bool {
	_, ok := s.raw(ctx, key)
	return ok
}

// Reset wipes all settings (bulk reset / amnesia).
func (s *Settings) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	s.cache = map[string]cachedSetting{}
	return nil
}

// Type returns the declared type for key.
func (s *Settings) Type(ctx context.Context, key string) (SettingType, error) {
	c, ok := s.raw(ctx, key)
	if !ok {
		return "", ErrNotFound
	}
	return c.typ, nil
}

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")
