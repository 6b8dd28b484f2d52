package database

import (
	"database/sql"
	"fmt"

	"streamview/work/types"
)

const profileColumns = `id, user_id, name, iptv_url, iptv_username, iptv_password, is_active,
	live_include_regex, live_exclude_regex, vod_include_regex, vod_exclude_regex,
	series_include_regex, series_exclude_regex, created_at, updated_at`

// scanProfile reads one profile row from a *sql.Row or *sql.Rows.
func scanProfile(scan func(dest ...interface{}) error) (*types.Profile, error) {
	p := &types.Profile{}
	err := scan(&p.ID, &p.UserID, &p.Name, &p.IPTVURL, &p.IPTVUsername, &p.IPTVPassword,
		&p.IsActive, &p.LiveIncludeRegex, &p.LiveExcludeRegex, &p.VODIncludeRegex,
		&p.VODExcludeRegex, &p.SeriesIncludeRegex, &p.SeriesExcludeRegex,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProfile inserts a new profile row for the owning user and returns it
// with the generated id. New profiles are never active; activation is a
// separate explicit step.
func (db *DB) CreateProfile(p *types.Profile) (*types.Profile, error) {
	result, err := db.Exec(`
		INSERT INTO profiles (user_id, name, iptv_url, iptv_username, iptv_password,
			live_include_regex, live_exclude_regex, vod_include_regex, vod_exclude_regex,
			series_include_regex, series_exclude_regex)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.IPTVURL, p.IPTVUsername, p.IPTVPassword,
		p.LiveIncludeRegex, p.LiveExcludeRegex, p.VODIncludeRegex, p.VODExcludeRegex,
		p.SeriesIncludeRegex, p.SeriesExcludeRegex)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile id: %w", err)
	}

	return db.GetProfile(id, p.UserID)
}

// GetProfile returns the profile with the given id, but only when it belongs
// to userID. A row owned by another user is indistinguishable from a missing
// row: both return ErrProfileNotFound.
func (db *DB) GetProfile(id, userID int64) (*types.Profile, error) {
	row := db.QueryRow(`
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = ? AND user_id = ?`,
		id, userID)
	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListProfilesByUser returns every profile belonging to userID, newest first.
func (db *DB) ListProfilesByUser(userID int64) ([]*types.Profile, error) {
	rows, err := db.Query(`
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*types.Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile rewrites the mutable fields of an owned profile. Ownership
// failures return ErrProfileNotFound without touching any row.
func (db *DB) UpdateProfile(p *types.Profile) (*types.Profile, error) {
	result, err := db.Exec(`
		UPDATE profiles
		SET name = ?, iptv_url = ?, iptv_username = ?, iptv_password = ?,
			live_include_regex = ?, live_exclude_regex = ?,
			vod_include_regex = ?, vod_exclude_regex = ?,
			series_include_regex = ?, series_exclude_regex = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		p.Name, p.IPTVURL, p.IPTVUsername, p.IPTVPassword,
		p.LiveIncludeRegex, p.LiveExcludeRegex,
		p.VODIncludeRegex, p.VODExcludeRegex,
		p.SeriesIncludeRegex, p.SeriesExcludeRegex,
		p.ID, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrProfileNotFound
	}
	return db.GetProfile(p.ID, p.UserID)
}

// SetActiveProfile makes the given profile the user's single active profile.
// Both steps run in one transaction: every sibling is deactivated, then the
// target is activated with an ownership check. If the target does not exist
// or belongs to someone else the transaction rolls back and no row changes.
func (db *DB) SetActiveProfile(id, userID int64) (*types.Profile, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE profiles
		SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND is_active = 1`,
		userID); err != nil {
		return nil, fmt.Errorf("failed to deactivate profiles: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE profiles
		SET is_active = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check activation result: %w", err)
	}
	if affected == 0 {
		return nil, ErrProfileNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return db.GetProfile(id, userID)
}

// ClearActiveProfile deactivates whatever profile is active for the user.
// Clearing when nothing is active is a no-op, not an error.
func (db *DB) ClearActiveProfile(userID int64) error {
	_, err := db.Exec(`
		UPDATE profiles
		SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND is_active = 1`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to clear active profile: %w", err)
	}
	return nil
}

// GetActiveProfileForUser returns the user's active profile, or nil with no
// error when none is active.
func (db *DB) GetActiveProfileForUser(userID int64) (*types.Profile, error) {
	row := db.QueryRow(`
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = ? AND is_active = 1`,
		userID)
	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}
	return p, nil
}

// DeleteProfile removes an owned profile. Deleting the active profile is
// refused with ErrProfileActive so a user cannot silently lose their
// working credentials; deactivate or switch first.
func (db *DB) DeleteProfile(id, userID int64) error {
	p, err := db.GetProfile(id, userID)
	if err != nil {
		return err
	}
	if p.IsActive {
		return ErrProfileActive
	}

	result, err := db.Exec(`
		DELETE FROM profiles
		WHERE id = ? AND user_id = ? AND is_active = 0`,
		id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
