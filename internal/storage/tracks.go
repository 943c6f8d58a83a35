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

	"github.com/echo-music/wavemix/internal/harmonic"
	"github.com/echo-music/wavemix/internal/playlist"
)

// Lookup resolves identities for the given track IDs. Unknown IDs are
// silently absent from the result.
func (db *DB) Lookup(ctx context.Context, trackIDs []string) (tracks []playlist.TrackInfo, err error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { observe("lookup_tracks", start, err) }()

	query := fmt.Sprintf(`
		SELECT id, title, artist_id, artist_name, album_id
		FROM tracks
		WHERE id IN (%s)`, placeholders(len(trackIDs)))

	rows, err := db.conn.QueryContext(ctx, query, stringArgs(trackIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t playlist.TrackInfo
		if err := rows.Scan(&t.ID, &t.Title, &t.ArtistID, &t.ArtistName, &t.AlbumID); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachGenres(ctx, tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// TracksByArtist returns every known track of an artist.
func (db *DB) TracksByArtist(ctx context.Context, artistID string) (tracks []playlist.TrackInfo, err error) {
	start := time.Now()
	defer func() { observe("tracks_by_artist", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, artist_id, artist_name, album_id
		FROM tracks
		WHERE artist_id = ?
		ORDER BY id`, artistID)
	if err != nil {
		return nil, fmt.Errorf("querying artist tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t playlist.TrackInfo
		if err := rows.Scan(&t.ID, &t.Title, &t.ArtistID, &t.ArtistName, &t.AlbumID); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachGenres(ctx, tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// TracksByGenre returns every known track tagged with a genre.
func (db *DB) TracksByGenre(ctx context.Context, genre string) (tracks []playlist.TrackInfo, err error) {
	start := time.Now()
	defer func() { observe("tracks_by_genre", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.id, t.title, t.artist_id, t.artist_name, t.album_id
		FROM tracks t
		JOIN track_genres g ON g.track_id = t.id
		WHERE g.genre = ?
		ORDER BY t.id`, genre)
	if err != nil {
		return nil, fmt.Errorf("querying genre tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t playlist.TrackInfo
		if err := rows.Scan(&t.ID, &t.Title, &t.ArtistID, &t.ArtistName, &t.AlbumID); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachGenres(ctx, tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// attachGenres fills the Genres field for the given tracks in one query.
func (db *DB) attachGenres(ctx context.Context, tracks []playlist.TrackInfo) error {
	if len(tracks) == 0 {
		return nil
	}

	ids := make([]string, len(tracks))
	index := make(map[string]int, len(tracks))
	for i := range tracks {
		ids[i] = tracks[i].ID
		index[tracks[i].ID] = i
	}

	query := fmt.Sprintf(`
		SELECT track_id, genre
		FROM track_genres
		WHERE track_id IN (%s)
		ORDER BY track_id, genre`, placeholders(len(ids)))

	rows, err := db.conn.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("querying genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trackID, genre string
		if err := rows.Scan(&trackID, &genre); err != nil {
			return fmt.Errorf("scanning genre: %w", err)
		}
		if i, ok := index[trackID]; ok {
			tracks[i].Genres = append(tracks[i].Genres, genre)
		}
	}
	return rows.Err()
}

// ByTrackIDs returns DJ analysis rows for the tracks that have them.
func (db *DB) ByTrackIDs(ctx context.Context, trackIDs []string) (rows []harmonic.TrackDjData, err error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { observe("dj_by_track_ids", start, err) }()

	query := fmt.Sprintf(`
		SELECT track_id, bpm, key_signature, camelot_key, energy
		FROM track_dj_data
		WHERE track_id IN (%s)`, placeholders(len(trackIDs)))

	result, err := db.conn.QueryContext(ctx, query, stringArgs(trackIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying dj data: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var (
			d       harmonic.TrackDjData
			bpm     sql.NullFloat64
			key     sql.NullString
			camelot sql.NullString
			energy  sql.NullFloat64
		)
		if err := result.Scan(&d.TrackID, &bpm, &key, &camelot, &energy); err != nil {
			return nil, fmt.Errorf("scanning dj data: %w", err)
		}
		d.BPM = bpm.Float64
		d.Key = key.String
		d.CamelotKey = camelot.String
		d.Energy = energy.Float64
		rows = append(rows, d)
	}
	return rows, result.Err()
}

// UpsertTrack creates or replaces a track and its genre tags.
func (db *DB) UpsertTrack(ctx context.Context, track playlist.TrackInfo) (err error) {
	start := time.Now()
	defer func() { observe("upsert_track", start, err) }()

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
		INSERT INTO tracks (id, title, artist_id, artist_name, album_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			artist_id = excluded.artist_id,
			artist_name = excluded.artist_name,
			album_id = excluded.album_id`,
		track.ID, track.Title, track.ArtistID, track.ArtistName, track.AlbumID); err != nil {
		return fmt.Errorf("upserting track: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM track_genres WHERE track_id = ?`, track.ID); err != nil {
		return fmt.Errorf("clearing genres: %w", err)
	}
	for _, genre := range track.Genres {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO track_genres (track_id, genre) VALUES (?, ?)`,
			track.ID, genre); err != nil {
			return fmt.Errorf("inserting genre %s: %w", genre, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing track: %w", err)
	}
	return nil
}

// UpsertDjData creates or replaces a track's DJ analysis row.
func (db *DB) UpsertDjData(ctx context.Context, data harmonic.TrackDjData) (err error) {
	start := time.Now()
	defer func() { observe("upsert_dj_data", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO track_dj_data (track_id, bpm, key_signature, camelot_key, energy)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (track_id) DO UPDATE SET
			bpm = excluded.bpm,
			key_signature = excluded.key_signature,
			camelot_key = excluded.camelot_key,
			energy = excluded.energy`,
		data.TrackID, data.BPM, data.Key, data.CamelotKey, data.Energy)
	if err != nil {
		return fmt.Errorf("upserting dj data: %w", err)
	}
	return nil
}
