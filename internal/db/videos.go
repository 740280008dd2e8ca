package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bobarin/clipforge/internal/models"
)

var ErrVideoNotFound = errors.New("video not found")

// DefaultListLimit caps ListVideos when the caller passes no limit.
const DefaultListLimit = 100

const videoColumns = `
	id, title, category, format, style, voice, script,
	keywords, negative_keywords, path, thumbnail_path,
	duration, created_at, status
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(
		&v.ID, &v.Title, &v.Category, &v.Format, &v.Style, &v.Voice, &v.Script,
		&v.Keywords, &v.NegativeKeywords, &v.Path, &v.ThumbnailPath,
		&v.Duration, &v.CreatedAt, &v.Status,
	)
	return v, err
}

// AddVideo inserts a catalog record and returns its new id.
func (db *DB) AddVideo(ctx context.Context, video *models.Video) (int64, error) {
	query := `
		INSERT INTO videos (
			title, category, format, style, voice, script,
			keywords, negative_keywords, path, thumbnail_path,
			duration, created_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12::timestamptz, NOW()), $13)
		RETURNING id, created_at
	`

	var createdAt any
	if !video.CreatedAt.IsZero() {
		createdAt = video.CreatedAt
	}
	status := video.Status
	if status == "" {
		status = models.VideoStatusCompleted
	}

	err := db.QueryRowContext(
		ctx, query,
		video.Title, video.Category, video.Format, video.Style, video.Voice, video.Script,
		video.Keywords, video.NegativeKeywords, video.Path, video.ThumbnailPath,
		video.Duration, createdAt, status,
	).Scan(&video.ID, &video.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to add video: %w", err)
	}

	video.Status = status
	return video.ID, nil
}

func (db *DB) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// ListVideos returns videos newest first.
func (db *DB) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

// SearchVideos matches query case-insensitively against title and category.
func (db *DB) SearchVideos(ctx context.Context, query string) ([]*models.Video, error) {
	pattern := "%" + escapeLike(query) + "%"

	sqlQuery := `SELECT ` + videoColumns + `
		FROM videos
		WHERE title ILIKE $1 OR category ILIKE $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := db.QueryContext(ctx, sqlQuery, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func collectVideos(rows *sql.Rows) ([]*models.Video, error) {
	videos := []*models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read videos: %w", err)
	}
	return videos, nil
}

func (db *DB) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// UpdateVideo applies the set fields of u. It reports false when u is
// empty or no row has that id.
func (db *DB) UpdateVideo(ctx context.Context, id int64, u models.VideoUpdate) (bool, error) {
	query, args := buildVideoUpdate(id, u)
	if query == "" {
		return false, nil
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update video: %w", err)
	}
	return n > 0, nil
}

// DeleteVideo removes the record. The video file itself is left alone.
func (db *DB) DeleteVideo(ctx context.Context, id int64) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete video: %w", err)
	}
	return n > 0, nil
}

// buildVideoUpdate returns an UPDATE statement for the non-nil fields of u,
// or "" when there is nothing to change.
func buildVideoUpdate(id int64, u models.VideoUpdate) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.Format != nil {
		add("format", *u.Format)
	}
	if u.Style != nil {
		add("style", *u.Style)
	}
	if u.Voice != nil {
		add("voice", *u.Voice)
	}
	if u.Script != nil {
		add("script", *u.Script)
	}
	if u.Keywords != nil {
		add("keywords", *u.Keywords)
	}
	if u.NegativeKeywords != nil {
		add("negative_keywords", *u.NegativeKeywords)
	}
	if u.Duration != nil {
		add("duration", *u.Duration)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}

	if len(sets) == 0 {
		return "", nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE videos SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
