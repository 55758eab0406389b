package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/liliang-cn/moviematic/internal/validator"
)

// HomepageSection 首页上由管理员维护的一排电影
type HomepageSection struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	MovieIDs  []int64   `json:"movie_ids"`
	Order     int       `json:"order"`
	IsActive  bool      `json:"is_active"`
	Movies    []*Movie  `json:"movies,omitempty"`
}

func ValidateSection(v *validator.Validator, section *HomepageSection) {
	v.Check(validator.NotBlank(section.Title), "title", "must be provided")
	v.Check(len(section.Title) <= 200, "title", "must not be more than 200 bytes long")
	v.Check(len(section.MovieIDs) >= 1, "movie_ids", "must contain at least 1 movie")
	v.Check(validator.Unique(section.MovieIDs), "movie_ids", "must not contain duplicate values")
	for _, id := range section.MovieIDs {
		v.Check(id > 0, "movie_ids", "must contain only positive ids")
	}
}

type SectionModel struct {
	DB *sql.DB
}

// checkMovies section 中的每个电影 id 都必须存在
func (m SectionModel) checkMovies(ctx context.Context, ids []int64) error {
	found, err := existingIDs(ctx, m.DB, `SELECT id FROM movies WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}

	return missingIDs("movie", ids, found)
}

func (m SectionModel) Insert(ctx context.Context, section *HomepageSection) error {
	if err := m.checkMovies(ctx, section.MovieIDs); err != nil {
		return err
	}

	query := `
		INSERT INTO homepage_sections (title, movie_ids, sort_order, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return m.DB.QueryRowContext(ctx, query, section.Title, pq.Array(section.MovieIDs), section.Order, section.IsActive).
		Scan(&section.ID, &section.CreatedAt, &section.UpdatedAt)
}

func (m SectionModel) Get(ctx context.Context, id int64) (*HomepageSection, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT id, created_at, updated_at, title, movie_ids, sort_order, is_active
		FROM homepage_sections
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s HomepageSection
	err := m.DB.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Title, pq.Array(&s.MovieIDs), &s.Order, &s.IsActive)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return &s, nil
}

// Update 整体替换 section，引用校验失败时不做任何修改
func (m SectionModel) Update(ctx context.Context, section *HomepageSection) error {
	if err := m.checkMovies(ctx, section.MovieIDs); err != nil {
		return err
	}

	query := `
		UPDATE homepage_sections
		SET title = $1, movie_ids = $2, sort_order = $3, is_active = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, section.Title, pq.Array(section.MovieIDs), section.Order, section.IsActive, section.ID).
		Scan(&section.UpdatedAt)
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

func (m SectionModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM homepage_sections WHERE id = $1`, id)
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

// GetAll 按 order 和创建时间排序
func (m SectionModel) GetAll(ctx context.Context, activeOnly bool) ([]*HomepageSection, error) {
	query := `
		SELECT id, created_at, updated_at, title, movie_ids, sort_order, is_active
		FROM homepage_sections
		WHERE ($1 = false OR is_active)
		ORDER BY sort_order ASC, created_at ASC, id ASC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []*HomepageSection{}
	for rows.Next() {
		var s HomepageSection
		err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Title, pq.Array(&s.MovieIDs), &s.Order, &s.IsActive)
		if err != nil {
			return nil, err
		}
		sections = append(sections, &s)
	}

	return sections, rows.Err()
}

// Populate 按 MovieIDs 的顺序填充 Movies，已删除的电影被跳过
func (m SectionModel) Populate(ctx context.Context, movies MovieModel, sections []*HomepageSection) error {
	for _, s := range sections {
		list, err := movies.GetByIDs(ctx, s.MovieIDs)
		if err != nil {
			return err
		}
		s.Movies = list
	}

	return nil
}
