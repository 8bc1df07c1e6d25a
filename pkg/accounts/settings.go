package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

const settingsColumns = "user_id, currency, language, theme, notification_enabled, updated_at"

// SettingsUpdate carries the optional settings fields. Nil fields are left unchanged.
type SettingsUpdate struct {
	Currency            *string `json:"currency,omitempty"`
	Language            *string `json:"language,omitempty"`
	Theme               *string `json:"theme,omitempty"`
	NotificationEnabled *bool   `json:"notification_enabled,omitempty"`
}

// Validate checks every present field against its allowed values
func (u SettingsUpdate) Validate() error {
	if u.Currency != nil && !auth.IsValidCurrency(*u.Currency) {
		return fmt.Errorf("unsupported currency %q", *u.Currency)
	}
	if u.Language != nil && !auth.IsValidLanguage(*u.Language) {
		return fmt.Errorf("unsupported language %q", *u.Language)
	}
	if u.Theme != nil && !auth.IsValidTheme(*u.Theme) {
		return fmt.Errorf("unsupported theme %q", *u.Theme)
	}
	return nil
}

// Changes lists the names of the fields present in the update
func (u SettingsUpdate) Changes() []string {
	var changed []string
	if u.Currency != nil {
		changed = append(changed, "currency")
	}
	if u.Language != nil {
		changed = append(changed, "language")
	}
	if u.Theme != nil {
		changed = append(changed, "theme")
	}
	if u.NotificationEnabled != nil {
		changed = append(changed, "notification_enabled")
	}
	return changed
}

// GetSettings returns the user's settings, creating the default row when
// none exists yet.
func (s *Store) GetSettings(ctx context.Context, userID int64) (*auth.Settings, error) {
	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	settings, err := scanSettings(s.db.QueryRowContext(ctx,
		"SELECT "+settingsColumns+" FROM user_settings WHERE user_id = $1", userID))
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Another request may have created the row in between; the no-op
	// update makes RETURNING yield it either way.
	settings, err = scanSettings(s.db.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+settingsColumns, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies upd, creating the row from defaults when missing
func (s *Store) UpdateSettings(ctx context.Context, userID int64, upd SettingsUpdate) (*auth.Settings, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	insert := auth.DefaultSettings(userID)
	if upd.Currency != nil {
		insert.Currency = *upd.Currency
	}
	if upd.Language != nil {
		insert.Language = *upd.Language
	}
	if upd.Theme != nil {
		insert.Theme = *upd.Theme
	}
	if upd.NotificationEnabled != nil {
		insert.NotificationEnabled = *upd.NotificationEnabled
	}

	ctx, cancel := postgres.WithStatementTimeout(ctx, s.timeout)
	defer cancel()

	settings, err := scanSettings(s.db.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, currency, language, theme, notification_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			currency = COALESCE($6, user_settings.currency),
			language = COALESCE($7, user_settings.language),
			theme = COALESCE($8, user_settings.theme),
			notification_enabled = COALESCE($9, user_settings.notification_enabled),
			updated_at = CURRENT_TIMESTAMP
		RETURNING `+settingsColumns,
		userID, insert.Currency, insert.Language, insert.Theme, insert.NotificationEnabled,
		upd.Currency, upd.Language, upd.Theme, upd.NotificationEnabled,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return settings, nil
}

func scanSettings(row rowScanner) (*auth.Settings, error) {
	var settings auth.Settings
	err := row.Scan(
		&settings.UserID, &settings.Currency, &settings.Language,
		&settings.Theme, &settings.NotificationEnabled, &settings.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}
	return &settings, nil
}
