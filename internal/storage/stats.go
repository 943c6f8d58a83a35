// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/echo-music/wavemix/internal/playlist"
	"github.com/echo-music/wavemix/internal/scoring"
)

// The engine packages consume these contracts; keep the implementations
// honest at compile time.
var (
	_ scoring.PlayStatsSource    = (*DB)(nil)
	_ scoring.InteractionsSource = (*DB)(nil)
	_ playlist.PlayStatsRepo     = (*DB)(nil)
	_ playlist.TrackCatalog      = (*DB)(nil)
	_ playlist.DjAnalysisRepo    = (*DB)(nil)
)

// TopItems returns the user's most-played items of a type, best first.
func (db *DB) TopItems(ctx context.Context, userID string, itemType scoring.ItemType, limit int) (items []playlist.TopItem, err error) {
	start := time.Now()
	defer func() { observe("top_items", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, play_count
		FROM play_stats
		WHERE user_id = ? AND item_type = ?
		ORDER BY play_count DESC, item_id
		LIMIT ?`, userID, string(itemType), limit)
	if err != nil {
		return nil, fmt.Errorf("querying top items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item playlist.TopItem
		if err := rows.Scan(&item.ItemID, &item.PlayCount); err != nil {
			return nil, fmt.Errorf("scanning top item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UserPlayStats returns all play stats of a type for a user.
func (db *DB) UserPlayStats(ctx context.Context, userID string, itemType scoring.ItemType) (stats []scoring.PlayStat, err error) {
	start := time.Now()
	defer func() { observe("user_play_stats", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, item_type, play_count, weighted_play_count,
		       avg_completion_rate, last_played_at
		FROM play_stats
		WHERE user_id = ? AND item_type = ?`, userID, string(itemType))
	if err != nil {
		return nil, fmt.Errorf("querying play stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stat       scoring.PlayStat
			lastPlayed any
		)
		if err := rows.Scan(&stat.ItemID, &stat.ItemType, &stat.PlayCount,
			&stat.WeightedPlayCount, &stat.AvgCompletionRate, &lastPlayed); err != nil {
			return nil, fmt.Errorf("scanning play stat: %w", err)
		}
		// Driver versions differ on whether TIMESTAMP comes back as
		// time.Time or its textual form; normalize either, and treat
		// NULL or unparseable values as never-played.
		if ts, ok := scoring.ParseTimestamp(lastPlayed); ok {
			stat.LastPlayedAt = ts
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// UserPlayHistory returns the user's most recent play events, newest first.
func (db *DB) UserPlayHistory(ctx context.Context, userID string, limit int) (events []playlist.PlayEvent, err error) {
	start := time.Now()
	defer func() { observe("user_play_history", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT track_id, played_at
		FROM play_history
		WHERE user_id = ?
		ORDER BY played_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying play history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev playlist.PlayEvent
		if err := rows.Scan(&ev.TrackID, &ev.PlayedAt); err != nil {
			return nil, fmt.Errorf("scanning play event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UserInteractions returns all of a user's ratings for an item type.
func (db *DB) UserInteractions(ctx context.Context, userID string, itemType scoring.ItemType) (out []scoring.InteractionSummary, err error) {
	start := time.Now()
	defer func() { observe("user_interactions", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, rating
		FROM interactions
		WHERE user_id = ? AND item_type = ?`, userID, string(itemType))
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			summary scoring.InteractionSummary
			rating  sql.NullInt64
		)
		if err := rows.Scan(&summary.ItemID, &rating); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		if rating.Valid {
			r := int(rating.Int64)
			summary.Rating = &r
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// ActiveUsers returns the IDs of users with at least one play since the
// given time. The refresh scheduler iterates this set.
func (db *DB) ActiveUsers(ctx context.Context, since time.Time) (userIDs []string, err error) {
	start := time.Now()
	defer func() { observe("active_users", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT user_id
		FROM play_history
		WHERE played_at >= ?
		ORDER BY user_id`, since)
	if err != nil {
		return nil, fmt.Errorf("querying active users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// RecordPlay appends a play event and folds it into the track and artist
// play stats. The weighted play count grows by the completion rate so
// skipped tracks count less than full listens.
func (db *DB) RecordPlay(ctx context.Context, userID, trackID string, playedAt time.Time, completionRate float64) (err error) {
	start := time.Now()
	defer func() { observe("record_play", start, err) }()

	if completionRate < 0 {
		completionRate = 0
	} else if completionRate > 1 {
		completionRate = 1
	}

	var artistID string
	err = db.conn.QueryRowContext(ctx,
		`SELECT artist_id FROM tracks WHERE id = ?`, trackID).Scan(&artistID)
	if err != nil {
		return fmt.Errorf("resolving track %s: %w", trackID, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO play_history (id, user_id, track_id, played_at, completion_rate)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, trackID, playedAt, completionRate); err != nil {
		return fmt.Errorf("inserting play event: %w", err)
	}

	upsert := `
		INSERT INTO play_stats (user_id, item_id, item_type, play_count,
			weighted_play_count, avg_completion_rate, last_played_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (user_id, item_id, item_type) DO UPDATE SET
			play_count = play_stats.play_count + 1,
			weighted_play_count = play_stats.weighted_play_count + excluded.weighted_play_count,
			avg_completion_rate = (play_stats.avg_completion_rate * play_stats.play_count
				+ excluded.avg_completion_rate) / (play_stats.play_count + 1),
			last_played_at = excluded.last_played_at`
	for _, item := range []struct {
		id  string
		typ scoring.ItemType
	}{
		{trackID, scoring.ItemTypeTrack},
		{artistID, scoring.ItemTypeArtist},
	} {
		if _, err = tx.ExecContext(ctx, upsert,
			userID, item.id, string(item.typ), completionRate, completionRate, playedAt); err != nil {
			return fmt.Errorf("upserting %s play stat: %w", item.typ, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing play: %w", err)
	}
	return nil
}

// SetRating records or updates a user's rating for an item. A nil rating
// clears it.
func (db *DB) SetRating(ctx context.Context, userID, itemID string, itemType scoring.ItemType, rating *int) (err error) {
	start := time.Now()
	defer func() { observe("set_rating", start, err) }()

	var value any
	if rating != nil {
		value = *rating
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO interactions (user_id, item_id, item_type, rating, updated_at)
		VALUES (?, ?, ?, ?, current_timestamp)
		ON CONFLICT (user_id, item_id, item_type) DO UPDATE SET
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		userID, itemID, string(itemType), value)
	if err != nil {
		return fmt.Errorf("upserting rating: %w", err)
	}
	return nil
}
