// Package store is the library's persistence façade: tracks, play counts,
// ratings and playlists over a single SQLite file.
//
// The store is the sole writer to the database. It opens exactly one
// connection, so every mutation is serialized by the connection itself and
// concurrent callers never need ad hoc coordination. Operations that may
// block on disk or locks must run off the audio path; the coordinator takes
// care of that.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"tonearm/api"
	errs "tonearm/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT UNIQUE NOT NULL,
    title TEXT,
    artist TEXT,
    album TEXT,
    duration_seconds REAL,
    added_at INTEGER NOT NULL,
    play_count INTEGER NOT NULL DEFAULT 0,
    last_played INTEGER,
    rating INTEGER
);
CREATE TABLE IF NOT EXISTS playlists (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS playlist_entries (
    playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
    track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    PRIMARY KEY (playlist_id, position)
) WITHOUT ROWID;
`

// Store wraps one SQLite connection. Safe for concurrent use; all access is
// serialized by the single connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// A locked or unwritable database surfaces as errs.ErrStoreUnavailable.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, mapErr("open store", path, err)
	}

	// One connection is the concurrency contract, not an optimization.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, mapErr("migrate", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTrack creates a track row for path with the probed metadata and
// returns the new id. A path already in the library fails with
// errs.ErrConflict and leaves the existing row untouched.
func (s *Store) InsertTrack(ctx context.Context, path string, meta api.Metadata) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (path, title, artist, album, duration_seconds, added_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path, nullStr(meta.Title), nullStr(meta.Artist), nullStr(meta.Album),
		nullSeconds(meta.Duration), time.Now().Unix())
	if err != nil {
		return 0, mapErr("insert track", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr("insert track", path, err)
	}
	return id, nil
}

// RefreshTrack updates the probed metadata of an existing track, as a rescan
// does. Play statistics and rating are not touched.
func (s *Store) RefreshTrack(ctx context.Context, path string, meta api.Metadata) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET title = ?, artist = ?, album = ?, duration_seconds = ?
		 WHERE path = ?`,
		nullStr(meta.Title), nullStr(meta.Artist), nullStr(meta.Album),
		nullSeconds(meta.Duration), path)
	if err != nil {
		return mapErr("refresh track", path, err)
	}
	return requireRow(res, "refresh track", path)
}

// GetTrack returns the track with the given id.
func (s *Store) GetTrack(ctx context.Context, id int64) (api.Track, error) {
	row := s.db.QueryRowContext(ctx, selectTrack+" WHERE id = ?", id)
	return scanTrack(row, "get track", fmt.Sprintf("track %d", id))
}

// GetTrackByPath returns the track identified by its filesystem path.
func (s *Store) GetTrackByPath(ctx context.Context, path string) (api.Track, error) {
	row := s.db.QueryRowContext(ctx, selectTrack+" WHERE path = ?", path)
	return scanTrack(row, "get track", path)
}

// RecordPlay increments the track's play count and stamps last_played, as
// one atomic update. Unknown ids fail with errs.ErrNotFound.
func (s *Store) RecordPlay(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET play_count = play_count + 1, last_played = ? WHERE id = ?`,
		at.Unix(), id)
	if err != nil {
		return mapErr("record play", fmt.Sprintf("track %d", id), err)
	}
	return requireRow(res, "record play", fmt.Sprintf("track %d", id))
}

// SetRating stores a user rating. Values outside api.RatingMin..RatingMax
// fail with errs.ErrOutOfRange before the database is touched.
func (s *Store) SetRating(ctx context.Context, id int64, rating int) error {
	if rating < api.RatingMin || rating > api.RatingMax {
		return errs.E("set rating", fmt.Sprintf("track %d", id),
			fmt.Errorf("%w: rating %d not within %d..%d", errs.ErrOutOfRange, rating, api.RatingMin, api.RatingMax))
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tracks SET rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return mapErr("set rating", fmt.Sprintf("track %d", id), err)
	}
	return requireRow(res, "set rating", fmt.Sprintf("track %d", id))
}

// Filter narrows ListTracks. Zero values match everything.
type Filter struct {
	Artist string // substring match on artist
	Album  string // substring match on album
	Search string // substring match on title, artist or album
}

// ListTracks returns tracks matching filter, ordered by artist, album and
// title so repeated listings are stable.
func (s *Store) ListTracks(ctx context.Context, filter Filter) ([]api.Track, error) {
	var conds []string
	var args []any
	if filter.Artist != "" {
		conds = append(conds, "artist LIKE ?")
		args = append(args, "%"+filter.Artist+"%")
	}
	if filter.Album != "" {
		conds = append(conds, "album LIKE ?")
		args = append(args, "%"+filter.Album+"%")
	}
	if filter.Search != "" {
		conds = append(conds, "(title LIKE ? OR artist LIKE ? OR album LIKE ? OR path LIKE ?)")
		like := "%" + filter.Search + "%"
		args = append(args, like, like, like, like)
	}

	query := selectTrack
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY artist, album, title, path"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list tracks", "", err)
	}
	defer rows.Close()

	var tracks []api.Track
	for rows.Next() {
		track, err := scanTrack(rows, "list tracks", "")
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list tracks", "", err)
	}
	return tracks, nil
}

// TrackCount returns the number of tracks in the library.
func (s *Store) TrackCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&count)
	if err != nil {
		return 0, mapErr("track count", "", err)
	}
	return count, nil
}

// DeleteTrack removes a track from the library. Playlist entries referencing
// it are pruned and the affected playlists resequenced, keeping positions
// dense. This is a library-management operation; the playback core never
// deletes tracks.
func (s *Store) DeleteTrack(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("delete track", fmt.Sprintf("track %d", id), err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT playlist_id FROM playlist_entries WHERE track_id = ?`, id)
	if err != nil {
		return mapErr("delete track", fmt.Sprintf("track %d", id), err)
	}
	var affected []int64
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return mapErr("delete track", fmt.Sprintf("track %d", id), err)
		}
		affected = append(affected, pid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapErr("delete track", fmt.Sprintf("track %d", id), err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return mapErr("delete track", fmt.Sprintf("track %d", id), err)
	}
	if err := requireRow(res, "delete track", fmt.Sprintf("track %d", id)); err != nil {
		return err
	}

	for _, pid := range affected {
		if err := resequence(ctx, tx, pid); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return mapErr("delete track", fmt.Sprintf("track %d", id), err)
	}
	return nil
}

// CreatePlaylist creates an empty playlist and returns its id. Names are
// unique; reuse fails with errs.ErrConflict.
func (s *Store) CreatePlaylist(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (name, created_at) VALUES (?, ?)`, name, time.Now().Unix())
	if err != nil {
		return 0, mapErr("create playlist", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr("create playlist", name, err)
	}
	return id, nil
}

// GetPlaylistByName resolves a playlist by its unique name.
func (s *Store) GetPlaylistByName(ctx context.Context, name string) (api.Playlist, error) {
	var p api.Playlist
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, p.created_at,
		        (SELECT COUNT(*) FROM playlist_entries e WHERE e.playlist_id = p.id)
		 FROM playlists p WHERE p.name = ?`, name).
		Scan(&p.ID, &p.Name, &created, &p.TrackCount)
	if err != nil {
		return api.Playlist{}, mapErr("get playlist", name, err)
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

// DeletePlaylist removes a playlist and its entries.
func (s *Store) DeletePlaylist(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return mapErr("delete playlist", fmt.Sprintf("playlist %d", id), err)
	}
	return requireRow(res, "delete playlist", fmt.Sprintf("playlist %d", id))
}

// AddToPlaylist appends a track at the end of a playlist. The same track may
// appear any number of times; each append gets the next dense position.
// Unknown playlist or track ids fail with errs.ErrNotFound.
func (s *Store) AddToPlaylist(ctx context.Context, playlistID, trackID int64) error {
	entity := fmt.Sprintf("playlist %d", playlistID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("add to playlist", entity, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM playlists WHERE id = ?`, playlistID).Scan(&exists); err != nil {
		return mapErr("add to playlist", entity, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO playlist_entries (playlist_id, track_id, position)
		 SELECT ?, ?, COALESCE(MAX(position) + 1, 0)
		 FROM playlist_entries WHERE playlist_id = ?`,
		playlistID, trackID, playlistID)
	if err != nil {
		return mapErr("add to playlist", entity, err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr("add to playlist", entity, err)
	}
	return nil
}

// RemoveFromPlaylist drops every entry of trackID from the playlist and
// resequences the remaining entries to dense positions. Removing a track the
// playlist does not contain is a no-op.
func (s *Store) RemoveFromPlaylist(ctx context.Context, playlistID, trackID int64) error {
	entity := fmt.Sprintf("playlist %d", playlistID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr("remove from playlist", entity, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM playlists WHERE id = ?`, playlistID).Scan(&exists); err != nil {
		return mapErr("remove from playlist", entity, err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_entries WHERE playlist_id = ? AND track_id = ?`,
		playlistID, trackID)
	if err != nil {
		return mapErr("remove from playlist", entity, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := resequence(ctx, tx, playlistID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return mapErr("remove from playlist", entity, err)
	}
	return nil
}

// ListPlaylist returns the playlist's tracks in position order. A track added
// twice appears twice.
func (s *Store) ListPlaylist(ctx context.Context, playlistID int64) ([]api.Track, error) {
	entity := fmt.Sprintf("playlist %d", playlistID)

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM playlists WHERE id = ?`, playlistID).Scan(&exists); err != nil {
		return nil, mapErr("list playlist", entity, err)
	}

	rows, err := s.db.QueryContext(ctx,
		selectTrackPrefixed+` JOIN playlist_entries e ON e.track_id = t.id
		 WHERE e.playlist_id = ? ORDER BY e.position`, playlistID)
	if err != nil {
		return nil, mapErr("list playlist", entity, err)
	}
	defer rows.Close()

	var tracks []api.Track
	for rows.Next() {
		track, err := scanTrack(rows, "list playlist", entity)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list playlist", entity, err)
	}
	return tracks, nil
}

// ListPlaylists returns all playlists by name, with entry counts.
func (s *Store) ListPlaylists(ctx context.Context) ([]api.Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.created_at,
		        (SELECT COUNT(*) FROM playlist_entries e WHERE e.playlist_id = p.id)
		 FROM playlists p ORDER BY p.name`)
	if err != nil {
		return nil, mapErr("list playlists", "", err)
	}
	defer rows.Close()

	var lists []api.Playlist
	for rows.Next() {
		var p api.Playlist
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &created, &p.TrackCount); err != nil {
			return nil, mapErr("list playlists", "", err)
		}
		p.CreatedAt = time.Unix(created, 0)
		lists = append(lists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list playlists", "", err)
	}
	return lists, nil
}

// resequence rewrites a playlist's entries with dense 0-based positions,
// preserving order. Runs inside the caller's transaction.
func resequence(ctx context.Context, tx *sql.Tx, playlistID int64) error {
	entity := fmt.Sprintf("playlist %d", playlistID)

	rows, err := tx.QueryContext(ctx,
		`SELECT track_id FROM playlist_entries WHERE playlist_id = ? ORDER BY position`,
		playlistID)
	if err != nil {
		return mapErr("resequence", entity, err)
	}
	var order []int64
	for rows.Next() {
		var tid int64
		if err := rows.Scan(&tid); err != nil {
			rows.Close()
			return mapErr("resequence", entity, err)
		}
		order = append(order, tid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapErr("resequence", entity, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_entries WHERE playlist_id = ?`, playlistID); err != nil {
		return mapErr("resequence", entity, err)
	}
	for pos, tid := range order {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_entries (playlist_id, track_id, position) VALUES (?, ?, ?)`,
			playlistID, tid, pos); err != nil {
			return mapErr("resequence", entity, err)
		}
	}
	return nil
}

const selectTrack = `SELECT id, path, title, artist, album, duration_seconds,
	added_at, play_count, last_played, rating FROM tracks`

const selectTrackPrefixed = `SELECT t.id, t.path, t.title, t.artist, t.album,
	t.duration_seconds, t.added_at, t.play_count, t.last_played, t.rating FROM tracks t`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner, op, entity string) (api.Track, error) {
	var t api.Track
	var title, artist, album sql.NullString
	var duration sql.NullFloat64
	var added int64
	var lastPlayed, rating sql.NullInt64

	err := row.Scan(&t.ID, &t.Path, &title, &artist, &album, &duration,
		&added, &t.PlayCount, &lastPlayed, &rating)
	if err != nil {
		return api.Track{}, mapErr(op, entity, err)
	}

	t.Title = title.String
	t.Artist = artist.String
	t.Album = album.String
	if duration.Valid {
		t.Duration = time.Duration(duration.Float64 * float64(time.Second))
	}
	t.AddedAt = time.Unix(added, 0)
	if lastPlayed.Valid {
		lp := time.Unix(lastPlayed.Int64, 0)
		t.LastPlayed = &lp
	}
	if rating.Valid {
		r := int(rating.Int64)
		t.Rating = &r
	}
	return t, nil
}

// requireRow converts a zero-row update into errs.ErrNotFound.
func requireRow(res sql.Result, op, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(op, entity, err)
	}
	if n == 0 {
		return errs.E(op, entity, errs.ErrNotFound)
	}
	return nil
}

// mapErr translates driver errors into the player's error taxonomy.
func mapErr(op, entity string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch {
		case serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked:
			return errs.E(op, entity, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err))
		case serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return errs.E(op, entity, fmt.Errorf("%w: %v", errs.ErrConflict, err))
		case serr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return errs.E(op, entity, fmt.Errorf("%w: %v", errs.ErrNotFound, err))
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.E(op, entity, errs.ErrNotFound)
	}
	return errs.E(op, entity, err)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullSeconds(d time.Duration) any {
	if d <= 0 {
		return nil
	}
	return d.Seconds()
}
