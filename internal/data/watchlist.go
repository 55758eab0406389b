package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/liliang-cn/moviematic/internal/validator"
)

const (
	StatusWantToWatch = "want_to_watch"
	StatusWatching    = "watching"
	StatusWatched     = "watched"
)

// WatchlistStatuses 所有合法的片单状态
var WatchlistStatuses = []string{StatusWantToWatch, StatusWatching, StatusWatched}

type WatchlistEntry struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	MovieID   int64         `json:"movie_id"`
	Status    string        `json:"status"`
	Rating    *int          `json:"rating,omitempty"`
	Notes     string        `json:"notes"`
	AddedAt   time.Time     `json:"added_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Movie     *MovieSummary `json:"movie,omitempty"`
}

// WatchlistStats 每种状态都有对应的键，没有记录时为 0
type WatchlistStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func ValidateWatchlistEntry(v *validator.Validator, entry *WatchlistEntry) {
	v.Check(entry.MovieID > 0, "movie_id", "must be provided")
	v.Check(validator.In(entry.Status, WatchlistStatuses...), "status", "must be one of want_to_watch, watching, watched")
	v.Check(entry.Rating == nil || (*entry.Rating >= 1 && *entry.Rating <= 10), "rating", "must be between 1 and 10")
	v.Check(validator.MaxChars(entry.Notes, 500), "notes", "must not be more than 500 characters long")
}

// NewWatchlistStats 合并数据库中的计数，缺失的状态补 0
func NewWatchlistStats(counts map[string]int) WatchlistStats {
	stats := WatchlistStats{ByStatus: make(map[string]int, len(WatchlistStatuses))}
	for _, status := range WatchlistStatuses {
		stats.ByStatus[status] = 0
	}

	for status, n := range counts {
		if _, ok := stats.ByStatus[status]; !ok || n <= 0 {
			continue
		}
		stats.ByStatus[status] = n
		stats.Total += n
	}

	return stats
}

type WatchlistModel struct {
	DB *sql.DB
}

func (m WatchlistModel) Insert(ctx context.Context, entry *WatchlistEntry) error {
	if entry.Status == "" {
		entry.Status = StatusWantToWatch
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var movieExists, listed bool
	err := m.DB.QueryRowContext(qctx, `
		SELECT
			EXISTS (SELECT 1 FROM movies WHERE id = $1),
			EXISTS (SELECT 1 FROM watchlist WHERE movie_id = $1 AND user_id = $2)`,
		entry.MovieID, entry.UserID).Scan(&movieExists, &listed)
	if err != nil {
		return err
	}

	switch {
	case !movieExists:
		return ErrRecordNotFound
	case listed:
		return ErrAlreadyInWatchlist
	}

	query := `
		INSERT INTO watchlist (user_id, movie_id, status, rating, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, added_at, updated_at`

	err = m.DB.QueryRowContext(qctx, query, entry.UserID, entry.MovieID, entry.Status, entry.Rating, entry.Notes).
		Scan(&entry.ID, &entry.AddedAt, &entry.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "watchlist_user_movie_key") {
			return ErrAlreadyInWatchlist
		}
		return err
	}

	return nil
}

const watchlistSelect = `
	SELECT w.id, w.user_id, w.movie_id, w.status, w.rating, w.notes, w.added_at, w.updated_at,
		m.id, m.title, m.director, m.release_year, m.runtime, m.rating, m.genres, m.portrait_image, m.landscape_image
	FROM watchlist w
	LEFT JOIN movies m ON m.id = w.movie_id`

// scanWatchlistEntry 电影已被删除时 Movie 为 nil
func scanWatchlistEntry(row interface{ Scan(...any) error }, dest ...any) (*WatchlistEntry, error) {
	var (
		e           WatchlistEntry
		rating      sql.NullInt32
		movieID     sql.NullInt64
		title       sql.NullString
		director    sql.NullString
		releaseYear sql.NullInt32
		runtime     sql.NullInt32
		movieRating sql.NullFloat64
		genres      []string
		portrait    sql.NullString
		landscape   sql.NullString
	)

	dest = append(dest, &e.ID, &e.UserID, &e.MovieID, &e.Status, &rating, &e.Notes, &e.AddedAt, &e.UpdatedAt,
		&movieID, &title, &director, &releaseYear, &runtime, &movieRating, pq.Array(&genres), &portrait, &landscape)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if rating.Valid {
		r := int(rating.Int32)
		e.Rating = &r
	}
	if movieID.Valid {
		e.Movie = &MovieSummary{
			ID:             movieID.Int64,
			Title:          title.String,
			Director:       director.String,
			ReleaseYear:    releaseYear.Int32,
			Runtime:        Runtime(runtime.Int32),
			Rating:         movieRating.Float64,
			Genres:         genres,
			PortraitImage:  portrait.String,
			LandscapeImage: landscape.String,
		}
	}

	return &e, nil
}

// GetAll 按加入时间倒序返回用户的片单，status 为空时不过滤
func (m WatchlistModel) GetAll(ctx context.Context, userID int64, status string, filters Filters) ([]*WatchlistEntry, Metadata, error) {
	query := `
		SELECT count(*) OVER(), w.id, w.user_id, w.movie_id, w.status, w.rating, w.notes, w.added_at, w.updated_at,
			m.id, m.title, m.director, m.release_year, m.runtime, m.rating, m.genres, m.portrait_image, m.landscape_image
		FROM watchlist w
		LEFT JOIN movies m ON m.id = w.movie_id
		WHERE w.user_id = $1 AND ($2 = '' OR w.status = $2)
		ORDER BY w.added_at DESC, w.id DESC
		LIMIT $3 OFFSET $4`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, userID, status, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	entries := []*WatchlistEntry{}
	for rows.Next() {
		entry, err := scanWatchlistEntry(rows, &totalRecords)
		if err != nil {
			return nil, Metadata{}, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return entries, calculateMetadata(totalRecords, filters.Page, filters.PageSize), nil
}

// Get 查询用户片单中的某部电影
func (m WatchlistModel) Get(ctx context.Context, userID, movieID int64) (*WatchlistEntry, error) {
	query := watchlistSelect + ` WHERE w.user_id = $1 AND w.movie_id = $2`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entry, err := scanWatchlistEntry(m.DB.QueryRowContext(ctx, query, userID, movieID))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return entry, nil
}

// Update 修改状态、评分和备注
func (m WatchlistModel) Update(ctx context.Context, entry *WatchlistEntry) error {
	query := `
		UPDATE watchlist
		SET status = $1, rating = $2, notes = $3, updated_at = now()
		WHERE user_id = $4 AND movie_id = $5
		RETURNING id, added_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, entry.Status, entry.Rating, entry.Notes, entry.UserID, entry.MovieID).
		Scan(&entry.ID, &entry.AddedAt, &entry.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrRecordNotFound
		default:
			return err
		}
	}

	return nil
}

// Delete 从片单中移除，记录直接删除
func (m WatchlistModel) Delete(ctx context.Context, userID, movieID int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (m WatchlistModel) Stats(ctx context.Context, userID int64) (WatchlistStats, error) {
	query := `SELECT status, count(*) FROM watchlist WHERE user_id = $1 GROUP BY status`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return WatchlistStats{}, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(WatchlistStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return WatchlistStats{}, err
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return WatchlistStats{}, err
	}

	return NewWatchlistStats(counts), nil
}
