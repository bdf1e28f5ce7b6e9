package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"caidasapi/internal/models"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// Fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps everything in a single SQLite file. Ids are UUIDv4 strings.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path and makes sure the
// schema exists.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	// busy_timeout: wait up to 5s on a locked database instead of failing at once.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// SQLite allows a single writer; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", path, err)
	}

	s := newSQLiteStore(db, logger)
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	logger.Info("connected to sqlite", zap.String("path", path))
	return s, nil
}

func newSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			registered_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT NOT NULL PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			location TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL
		);`,
		// seq keeps append order; image_id has no foreign key because the image
		// record may disappear while the event still lists it.
		`CREATE TABLE IF NOT EXISTS event_images (
			seq INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			image_id TEXT NOT NULL,
			FOREIGN KEY(event_id) REFERENCES events(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS images (
			id TEXT NOT NULL PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			uploaded_at TEXT NOT NULL,
			source_type TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			url_original TEXT NOT NULL DEFAULT '',
			url_optimized TEXT NOT NULL DEFAULT '',
			url_thumbnail TEXT NOT NULL DEFAULT '',
			host_id TEXT NOT NULL DEFAULT '',
			format TEXT NOT NULL DEFAULT '',
			byte_size INTEGER NOT NULL DEFAULT 0,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			event_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_event_images_event_id ON event_images (event_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_images_event_id ON images (event_id);`,
		`CREATE INDEX IF NOT EXISTS idx_images_status ON images (status);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, phone, registered_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, u.Name, u.Email, u.PasswordHash, u.Phone, formatTime(u.RegisteredAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	u.ID = id
	s.logger.Debug("user created", zap.String("id", id), zap.String("email", u.Email))
	return nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, phone, registered_at FROM users WHERE email = ?`, email)

	var (
		u            models.User
		registeredAt string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &registeredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user %s: %w", email, err)
	}
	if u.RegisteredAt, err = parseTime(registeredAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, email string, upd models.UserUpdate) (bool, error) {
	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *upd.Phone)
	}

	if len(sets) == 0 {
		// Nothing to write; still report whether the user exists.
		u, err := s.GetUserByEmail(ctx, email)
		return u != nil, err
	}

	args = append(args, email)
	res, err := s.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE email = ?", args...)
	if err != nil {
		return false, fmt.Errorf("updating user %s: %w", email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for user %s: %w", email, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, e *models.Event) error {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, category, severity, location, details, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, e.Category, e.Severity, e.Location, e.Details, formatTime(e.OccurredAt))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	e.ID = id
	if e.ImageIDs == nil {
		e.ImageIDs = []string{}
	}
	return nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	events, err := s.ListEvents(ctx, models.EventFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range []struct {
		column, value string
	}{
		{"id", f.ID},
		{"category", f.Category},
		{"severity", f.Severity},
		{"location", f.Location},
	} {
		if c.value != "" {
			where = append(where, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	query := `SELECT id, category, severity, location, details, occurred_at FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	index := map[string]int{}
	for rows.Next() {
		var (
			e          models.Event
			occurredAt string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Severity, &e.Location, &e.Details, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		e.ImageIDs = []string{}
		index[e.ID] = len(events)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if len(events) == 0 {
		return events, nil
	}
	if err := s.loadImageIDs(ctx, events, index); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *SQLiteStore) loadImageIDs(ctx context.Context, events []models.Event, index map[string]int) error {
	ids := make([]any, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, image_id FROM event_images WHERE event_id IN (`+placeholders(len(ids))+`) ORDER BY seq`, ids...)
	if err != nil {
		return fmt.Errorf("querying event images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, imageID string
		if err := rows.Scan(&eventID, &imageID); err != nil {
			return fmt.Errorf("scanning event image: %w", err)
		}
		if i, ok := index[eventID]; ok {
			events[i].ImageIDs = append(events[i].ImageIDs, imageID)
		}
	}
	return rows.Err()
}

// AppendEventImage inserts the link only if the event exists, so a missing
// event is reported without a separate read.
func (s *SQLiteStore) AppendEventImage(ctx context.Context, eventID, imageID string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO event_images (event_id, image_id) SELECT ?, ? WHERE EXISTS (SELECT 1 FROM events WHERE id = ?)`,
		eventID, imageID, eventID)
	if err != nil {
		return fmt.Errorf("appending image %s to event %s: %w", imageID, eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for event %s: %w", eventID, err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateImage(ctx context.Context, img *models.Image) error {
	id := uuid.NewString()

	urls := img.URLs
	if urls == nil {
		urls = &models.HostedURLs{}
	}
	meta := img.Metadata
	if meta == nil {
		meta = &models.ImageMetadata{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, description, uploaded_at, source_type, source,
			url_original, url_optimized, url_thumbnail, host_id,
			format, byte_size, width, height, event_id, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, img.Description, formatTime(img.UploadedAt), img.SourceType, img.Source,
		urls.Original, urls.Optimized, urls.Thumbnail, img.HostID,
		meta.Format, meta.ByteSize, meta.Width, meta.Height,
		img.LinkedEventID, img.Status, img.ErrorMessage)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}

	img.ID = id
	return nil
}

const imageColumns = `id, description, uploaded_at, source_type, source,
	url_original, url_optimized, url_thumbnail, host_id,
	format, byte_size, width, height, event_id, status, error_message`

func (s *SQLiteStore) GetImagesByIDs(ctx context.Context, ids []string) ([]models.Image, error) {
	if len(ids) == 0 {
		return []models.Image{}, nil
	}

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	images, err := s.queryImages(ctx, `SELECT `+imageColumns+` FROM images WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Image, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}
	return orderByIDs(ids, byID), nil
}

func (s *SQLiteStore) ListImages(ctx context.Context, f models.ImageFilter) ([]models.Image, error) {
	var (
		where []string
		args  []any
	)
	if f.EventID != "" {
		where = append(where, `event_id = ?`)
		args = append(args, f.EventID)
	}
	if f.Description != "" {
		// LIKE is case-insensitive for ASCII; % and _ in the term match literally.
		where = append(where, `description LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(f.Description)+"%")
	}

	query := `SELECT ` + imageColumns + ` FROM images`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY uploaded_at, id`
	return s.queryImages(ctx, query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Totals counts all three tables in one statement.
func (s *SQLiteStore) Totals(ctx context.Context) (models.Totals, error) {
	var t models.Totals
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM images),
		(SELECT COUNT(*) FROM events)`).Scan(&t.Users, &t.Images, &t.Events)
	if err != nil {
		return models.Totals{}, fmt.Errorf("counting records: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) queryImages(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var (
			img        models.Image
			uploadedAt string
			urls       models.HostedURLs
			meta       models.ImageMetadata
		)
		err := rows.Scan(&img.ID, &img.Description, &uploadedAt, &img.SourceType, &img.Source,
			&urls.Original, &urls.Optimized, &urls.Thumbnail, &img.HostID,
			&meta.Format, &meta.ByteSize, &meta.Width, &meta.Height,
			&img.LinkedEventID, &img.Status, &img.ErrorMessage)
		if err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		if img.UploadedAt, err = parseTime(uploadedAt); err != nil {
			return nil, err
		}
		// Degraded records carry no hosted data.
		if img.Status == models.ImageStatusProcessed {
			img.URLs = &urls
			img.Metadata = &meta
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}
	return images, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
