package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/crawlsend/internal/retry"
	"github.com/loykin/crawlsend/internal/sender"
)

// Setting is one persisted operator setting.
type Setting struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetSetting returns the value stored under name, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf(`SELECT value FROM %s WHERE name = %s`, s.tables.Settings, s.ph(1))
	value, err := retry.Do(ctx, s.retry, func() (string, error) {
		var v string
		err := s.DB.QueryRowContext(ctx, q, name).Scan(&v)
		return v, err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting inserts or replaces a setting.
func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	q := fmt.Sprintf(`INSERT INTO %s (name, value, updated_at) VALUES (%s)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.tables.Settings, s.placeholders(3))
	err := retry.Exec(ctx, s.retry, func() error {
		_, err := s.DB.ExecContext(ctx, q, name, value, s.dialect.ConvertTimeToStorage(time.Now()))
		return err
	})
	if err != nil {
		return fmt.Errorf("set setting %q: %w", name, err)
	}
	return nil
}

// DeleteSetting removes a setting. Removing a missing setting is ErrNotFound.
func (s *Store) DeleteSetting(ctx context.Context, name string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE name = %s`, s.tables.Settings, s.ph(1))
	res, err := retry.Do(ctx, s.retry, func() (sql.Result, error) {
		return s.DB.ExecContext(ctx, q, name)
	})
	if err != nil {
		return fmt.Errorf("delete setting %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("setting %q: %w", name, ErrNotFound)
	}
	return nil
}

// ListSettings returns all settings ordered by name.
func (s *Store) ListSettings(ctx context.Context) ([]Setting, error) {
	q := fmt.Sprintf(`SELECT name, value, updated_at FROM %s ORDER BY name`, s.tables.Settings)
	rows, err := retry.Do(ctx, s.retry, func() (*sql.Rows, error) {
		return s.DB.QueryContext(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Setting
	for rows.Next() {
		var (
			st      Setting
			updated interface{}
		)
		if err := rows.Scan(&st.Name, &st.Value, &updated); err != nil {
			return nil, err
		}
		st.UpdatedAt = s.dialect.ConvertTimeFromStorage(updated)
		out = append(out, st)
	}
	return out, rows.Err()
}

// LoadOptions overlays the persisted settings onto base. Settings that are
// not stored leave the corresponding base field untouched.
func (s *Store) LoadOptions(ctx context.Context, base sender.Options) (sender.Options, error) {
	settings, err := s.ListSettings(ctx)
	if err != nil {
		return base, err
	}
	values := make(map[string]interface{}, len(settings))
	for _, st := range settings {
		values[st.Name] = st.Value
	}

	out := base
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return base, err
	}
	if err := dec.Decode(values); err != nil {
		return base, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}
