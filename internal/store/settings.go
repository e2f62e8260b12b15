package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/retailbill/billsync/internal/schema"
)

func getSetting(ctx context.Context, q execer, key, def string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT setting_value FROM settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", &schema.StoreError{Op: "get setting", Collection: schema.Settings, Err: err}
	}
	return value, nil
}

func setSetting(ctx context.Context, q execer, key, value string) error {
	if err := (&schema.Setting{Key: key, Value: value}).Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
	INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
	ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value
	`, key, value)
	if err != nil {
		return &schema.StoreError{Op: "set setting", Collection: schema.Settings, Err: err}
	}
	return nil
}

func listSettings(ctx context.Context, q execer) ([]schema.Setting, error) {
	rows, err := q.QueryContext(ctx, `SELECT setting_key, setting_value FROM settings ORDER BY setting_key`)
	if err != nil {
		return nil, &schema.StoreError{Op: "list settings", Collection: schema.Settings, Err: err}
	}
	defer rows.Close()

	settings := []schema.Setting{}
	for rows.Next() {
		var s schema.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, &schema.StoreError{Op: "list settings", Collection: schema.Settings, Err: err}
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &schema.StoreError{Op: "list settings", Collection: schema.Settings, Err: err}
	}
	return settings, nil
}

// GetSetting returns the value stored under key, or def when unset.
func (db *DB) GetSetting(ctx context.Context, key, def string) (string, error) {
	return getSetting(ctx, db.conn, key, def)
}

// SetSetting stores value under key. Both must be non-empty, the same rule
// the server applies to pushed settings.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, db.conn, key, value)
}

// DeleteSetting removes key. Removing a missing key is not an error.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM settings WHERE setting_key = ?`, key); err != nil {
		return &schema.StoreError{Op: "delete setting", Collection: schema.Settings, Err: err}
	}
	return nil
}

// Settings returns every setting ascending by key.
func (db *DB) Settings(ctx context.Context) ([]schema.Setting, error) {
	return listSettings(ctx, db.conn)
}

// GetSetting returns the value under key as seen by the transaction.
func (tx *Tx) GetSetting(ctx context.Context, key, def string) (string, error) {
	return getSetting(ctx, tx.tx, key, def)
}

// SetSetting stores value under key inside the transaction.
func (tx *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, tx.tx, key, value)
}

// SeedSettings stores each default whose key is not set yet.
func (db *DB) SeedSettings(ctx context.Context, defaults []schema.Setting) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		for _, s := range defaults {
			if _, err := tx.tx.ExecContext(ctx, `
			INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
			ON CONFLICT(setting_key) DO NOTHING
			`, s.Key, s.Value); err != nil {
				return &schema.StoreError{Op: "seed settings", Collection: schema.Settings, Err: err}
			}
		}
		return nil
	})
}
