package data

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/liliang-cn/moviematic/internal/validator"
)

type Review struct {
	ID         int64         `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	UserID     int64         `json:"user_id"`
	MovieID    int64         `json:"movie_id"`
	Rating     int           `json:"rating"`
	ReviewText string        `json:"review_text"`
	IsActive   bool          `json:"-"`
	User       *ReviewAuthor `json:"user,omitempty"`
	Movie      *MovieSummary `json:"movie,omitempty"`
}

// ReviewAuthor 展示评论时附带的用户信息
type ReviewAuthor struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ReviewStats 一部电影的评分统计
type ReviewStats struct {
	AverageRating      float64     `json:"average_rating"`
	TotalReviews       int         `json:"total_reviews"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}

func ValidateReview(v *validator.Validator, review *Review) {
	v.Check(review.MovieID > 0, "movie_id", "must be provided")
	v.Check(review.Rating >= 1 && review.Rating <= 5, "rating", "must be between 1 and 5")
	v.Check(validator.NotBlank(review.ReviewText), "review_text", "must be provided")
	v.Check(validator.MaxChars(review.ReviewText, 1000), "review_text", "must not be more than 1000 characters long")
}

// NewReviewStats 由 评分 -> 数量 计算统计结果，平均分保留一位小数
func NewReviewStats(counts map[int]int) ReviewStats {
	stats := ReviewStats{
		RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	sum := 0
	for rating, n := range counts {
		if rating < 1 || rating > 5 || n <= 0 {
			continue
		}
		stats.RatingDistribution[rating] += n
		stats.TotalReviews += n
		sum += rating * n
	}

	if stats.TotalReviews > 0 {
		avg := float64(sum) / float64(stats.TotalReviews)
		stats.AverageRating = math.Round(avg*10) / 10
	}

	return stats
}

type ReviewModel struct {
	DB *sql.DB
}

// Insert 新建评论；同一用户对同一电影只能有一条有效评论
func (m ReviewModel) Insert(ctx context.Context, review *Review) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var movieExists, reviewed bool
	err := m.DB.QueryRowContext(qctx, `
		SELECT
			EXISTS (SELECT 1 FROM movies WHERE id = $1),
			EXISTS (SELECT 1 FROM reviews WHERE movie_id = $1 AND user_id = $2 AND is_active)`,
		review.MovieID, review.UserID).Scan(&movieExists, &reviewed)
	if err != nil {
		return err
	}

	switch {
	case !movieExists:
		return ErrRecordNotFound
	case reviewed:
		return ErrDuplicateReview
	}

	query := `
		INSERT INTO reviews (user_id, movie_id, rating, review_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at, is_active`

	// 预检查和插入之间的并发重复由部分唯一索引拦截
	err = m.DB.QueryRowContext(qctx, query, review.UserID, review.MovieID, review.Rating, review.ReviewText).
		Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt, &review.IsActive)
	if err != nil {
		if isUniqueViolation(err, "reviews_user_movie_active_idx") {
			return ErrDuplicateReview
		}
		return err
	}

	return nil
}

const reviewWithAuthorQuery = `
	SELECT r.id, r.created_at, r.updated_at, r.user_id, r.movie_id, r.rating, r.review_text, r.is_active,
		u.id, u.first_name, u.last_name, u.email
	FROM reviews r
	INNER JOIN users u ON u.id = r.user_id`

func scanReviewWithAuthor(row interface{ Scan(...any) error }) (*Review, error) {
	var (
		r Review
		a ReviewAuthor
	)
	err := row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt, &r.UserID, &r.MovieID, &r.Rating, &r.ReviewText, &r.IsActive,
		&a.ID, &a.FirstName, &a.LastName, &a.Email)
	if err != nil {
		return nil, err
	}
	r.User = &a
	return &r, nil
}

// GetActiveForOwner 只返回属于 userID 且未删除的评论
func (m ReviewModel) GetActiveForOwner(ctx context.Context, id, userID int64) (*Review, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := reviewWithAuthorQuery + ` WHERE r.id = $1 AND r.user_id = $2 AND r.is_active`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	review, err := scanReviewWithAuthor(m.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return review, nil
}

// GetForUserAndMovie 用户对某部电影的有效评论
func (m ReviewModel) GetForUserAndMovie(ctx context.Context, userID, movieID int64) (*Review, error) {
	query := reviewWithAuthorQuery + ` WHERE r.movie_id = $1 AND r.user_id = $2 AND r.is_active`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	review, err := scanReviewWithAuthor(m.DB.QueryRowContext(ctx, query, movieID, userID))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return review, nil
}

// GetAllForMovie 电影的有效评论，最新的在前
func (m ReviewModel) GetAllForMovie(ctx context.Context, movieID int64) ([]*Review, error) {
	query := reviewWithAuthorQuery + ` WHERE r.movie_id = $1 AND r.is_active ORDER BY r.created_at DESC, r.id DESC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []*Review{}
	for rows.Next() {
		review, err := scanReviewWithAuthor(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}

	return reviews, rows.Err()
}

// GetAllForUser 用户自己的有效评论，附带电影标题和海报；电影已删除时 Movie 为 nil
func (m ReviewModel) GetAllForUser(ctx context.Context, userID int64) ([]*Review, error) {
	query := `
		SELECT r.id, r.created_at, r.updated_at, r.user_id, r.movie_id, r.rating, r.review_text, r.is_active,
			m.id, m.title, m.portrait_image
		FROM reviews r
		LEFT JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = $1 AND r.is_active
		ORDER BY r.created_at DESC, r.id DESC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []*Review{}
	for rows.Next() {
		var (
			r        Review
			movieID  sql.NullInt64
			title    sql.NullString
			portrait sql.NullString
		)
		err := rows.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt, &r.UserID, &r.MovieID, &r.Rating, &r.ReviewText, &r.IsActive,
			&movieID, &title, &portrait)
		if err != nil {
			return nil, err
		}
		if movieID.Valid {
			r.Movie = &MovieSummary{ID: movieID.Int64, Title: title.String, PortraitImage: portrait.String}
		}
		reviews = append(reviews, &r)
	}

	return reviews, rows.Err()
}

// Update 修改评分和内容，只作用于有效评论
func (m ReviewModel) Update(ctx context.Context, review *Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, review_text = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4 AND is_active
		RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, review.Rating, review.ReviewText, review.ID, review.UserID).Scan(&review.UpdatedAt)
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

// SoftDelete 把评论标记为无效，记录本身保留
func (m ReviewModel) SoftDelete(ctx context.Context, id, userID int64) error {
	query := `
		UPDATE reviews
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND is_active`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, id, userID)
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

// Stats 只统计有效评论
func (m ReviewModel) Stats(ctx context.Context, movieID int64) (ReviewStats, error) {
	query := `
		SELECT rating, count(*)
		FROM reviews
		WHERE movie_id = $1 AND is_active
		GROUP BY rating`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, movieID)
	if err != nil {
		return ReviewStats{}, err
	}
	defer rows.Close()

	counts := make(map[int]int, 5)
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return ReviewStats{}, err
		}
		counts[rating] = n
	}
	if err := rows.Err(); err != nil {
		return ReviewStats{}, err
	}

	return NewReviewStats(counts), nil
}
