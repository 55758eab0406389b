package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/liliang-cn/moviematic/internal/validator"
)

// Genres 允许的电影类型
var Genres = []string{
	"Action", "Adventure", "Animation", "Biography", "Comedy", "Crime",
	"Documentary", "Drama", "Family", "Fantasy", "Film-Noir", "History",
	"Horror", "Music", "Musical", "Mystery", "Romance", "Sci-Fi",
	"Sport", "Thriller", "War", "Western",
}

// MovieSortSafelist 客户端可用的排序值
var MovieSortSafelist = []string{
	"title", "-title",
	"rating", "-rating",
	"release_year", "-release_year",
	"created_at", "-created_at",
}

// 设置每周电影时使用的事务级 advisory lock
const movieOfTheWeekLock = 7_243_001

type Movie struct {
	ID                 int64               `json:"id"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Title              string              `json:"title"`
	Director           string              `json:"director"`
	ReleaseYear        int32               `json:"release_year"`
	Genres             []string            `json:"genres"`
	Rating             float64             `json:"rating"`
	Runtime            Runtime             `json:"runtime"`
	Description        string              `json:"description"`
	Cast               []string            `json:"cast"`
	Language           string              `json:"language"`
	Country            string              `json:"country"`
	Budget             *int64              `json:"budget,omitempty"`
	BoxOffice          *int64              `json:"box_office,omitempty"`
	Awards             []string            `json:"awards"`
	IsReleased         bool                `json:"is_released"`
	MovieOfTheWeek     bool                `json:"movie_of_the_week"`
	TrailerURL         string              `json:"trailer_url,omitempty"`
	StreamingPlatforms []StreamingPlatform `json:"streaming_platforms"`
	PortraitImage      string              `json:"portrait_image,omitempty"`
	LandscapeImage     string              `json:"landscape_image,omitempty"`
	Version            int32               `json:"version"`
}

// StreamingPlatform 电影可以在哪个流媒体服务的哪个地址观看
type StreamingPlatform struct {
	ServiceID int64             `json:"service_id"`
	Service   *StreamingService `json:"service,omitempty"`
	URL       string            `json:"url"`
}

// MovieSummary 下拉选择和嵌入其他资源时使用的精简字段
type MovieSummary struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Director       string   `json:"director,omitempty"`
	ReleaseYear    int32    `json:"release_year,omitempty"`
	Runtime        Runtime  `json:"runtime,omitempty"`
	Rating         float64  `json:"rating"`
	Genres         []string `json:"genres,omitempty"`
	Cast           []string `json:"cast,omitempty"`
	Description    string   `json:"description,omitempty"`
	PortraitImage  string   `json:"portrait_image,omitempty"`
	LandscapeImage string   `json:"landscape_image,omitempty"`
}

func ValidateMovie(v *validator.Validator, movie *Movie) {
	v.Check(validator.NotBlank(movie.Title), "title", "must be provided")
	v.Check(len(movie.Title) <= 500, "title", "must not be more than 500 bytes long")

	v.Check(validator.NotBlank(movie.Director), "director", "must be provided")
	v.Check(len(movie.Director) <= 500, "director", "must not be more than 500 bytes long")

	v.Check(movie.ReleaseYear != 0, "release_year", "must be provided")
	v.Check(movie.ReleaseYear >= 1888, "release_year", "must be greater than 1888")
	v.Check(movie.ReleaseYear <= int32(time.Now().Year()+5), "release_year", "must not be more than five years in the future")

	v.Check(movie.Genres != nil, "genres", "must be provided")
	v.Check(len(movie.Genres) >= 1, "genres", "must contain at least 1 genre")
	v.Check(validator.Unique(movie.Genres), "genres", "must not contain duplicate values")
	for _, genre := range movie.Genres {
		v.Check(validator.In(genre, Genres...), "genres", fmt.Sprintf("%q is not a known genre", genre))
	}

	v.Check(movie.Rating >= 0 && movie.Rating <= 10, "rating", "must be between 0 and 10")

	v.Check(movie.Runtime != 0, "runtime", "must be provided")
	v.Check(movie.Runtime >= 1 && movie.Runtime <= 600, "runtime", "must be between 1 and 600 minutes")

	v.Check(validator.NotBlank(movie.Description), "description", "must be provided")
	v.Check(validator.MaxChars(movie.Description, 1000), "description", "must not be more than 1000 characters long")

	for _, member := range movie.Cast {
		v.Check(validator.NotBlank(member), "cast", "must not contain empty names")
	}
	for _, award := range movie.Awards {
		v.Check(validator.NotBlank(award), "awards", "must not contain empty values")
	}

	v.Check(movie.Budget == nil || *movie.Budget >= 0, "budget", "must not be negative")
	v.Check(movie.BoxOffice == nil || *movie.BoxOffice >= 0, "box_office", "must not be negative")

	v.Check(movie.TrailerURL == "" || validator.AbsoluteURL(movie.TrailerURL), "trailer_url", "must be an absolute http(s) URL")

	for _, p := range movie.StreamingPlatforms {
		v.Check(p.ServiceID > 0, "streaming_platforms", "service_id must be provided")
		v.Check(validator.AbsoluteURL(p.URL), "streaming_platforms", "url must be an absolute http(s) URL")
	}
}

// MovieQuery 电影搜索条件，各维度之间是 AND 关系
type MovieQuery struct {
	Text      string
	Genre     string
	Year      int
	MinRating *float64
	Filters
}

func ValidateMovieQuery(v *validator.Validator, q MovieQuery) {
	v.Check(len(q.Text) <= 200, "q", "must not be more than 200 bytes long")
	v.Check(len(q.Genre) <= 50, "genre", "must not be more than 50 bytes long")
	v.Check(q.Year >= 0, "year", "must not be negative")
	v.Check(q.MinRating == nil || (*q.MinRating >= 0 && *q.MinRating <= 10), "min_rating", "must be between 0 and 10")
	ValidateFilters(v, q.Filters)
}

// likePattern 把用户输入转换成不含通配符的子串匹配模式
func likePattern(text string) string {
	if text == "" {
		return ""
	}
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(text) + "%"
}

type MovieModel struct {
	DB *sql.DB
}

const movieColumns = `movies.id, movies.created_at, movies.updated_at, movies.title, movies.director,
	movies.release_year, movies.genres, movies.rating, movies.runtime, movies.description, movies.cast_members,
	movies.language, movies.country, movies.budget, movies.box_office, movies.awards, movies.is_released,
	movies.movie_of_the_week, movies.trailer_url, movies.portrait_image, movies.landscape_image, movies.version`

func movieScanDest(movie *Movie) []any {
	return []any{
		&movie.ID,
		&movie.CreatedAt,
		&movie.UpdatedAt,
		&movie.Title,
		&movie.Director,
		&movie.ReleaseYear,
		pq.Array(&movie.Genres),
		&movie.Rating,
		&movie.Runtime,
		&movie.Description,
		pq.Array(&movie.Cast),
		&movie.Language,
		&movie.Country,
		&movie.Budget,
		&movie.BoxOffice,
		pq.Array(&movie.Awards),
		&movie.IsReleased,
		&movie.MovieOfTheWeek,
		&movie.TrailerURL,
		&movie.PortraitImage,
		&movie.LandscapeImage,
		&movie.Version,
	}
}

// normalize 把 nil 列表换成空列表，避免 JSON 输出 null
func (movie *Movie) normalize() {
	if movie.Cast == nil {
		movie.Cast = []string{}
	}
	if movie.Awards == nil {
		movie.Awards = []string{}
	}
	if movie.Genres == nil {
		movie.Genres = []string{}
	}
	if movie.StreamingPlatforms == nil {
		movie.StreamingPlatforms = []StreamingPlatform{}
	}
	if movie.Language == "" {
		movie.Language = "English"
	}
	if movie.Country == "" {
		movie.Country = "United States"
	}
}

// checkServices 所有 streaming platform 引用的服务都必须存在
func (m MovieModel) checkServices(ctx context.Context, platforms []StreamingPlatform) error {
	if len(platforms) == 0 {
		return nil
	}

	ids := make([]int64, len(platforms))
	for i, p := range platforms {
		ids[i] = p.ServiceID
	}

	found, err := existingIDs(ctx, m.DB, `SELECT id FROM streaming_services WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}

	return missingIDs("streaming_service", ids, found)
}

// existingIDs 返回 ids 中数据库里存在的那部分
func existingIDs(ctx context.Context, db *sql.DB, query string, ids []int64) (map[int64]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}

	return found, rows.Err()
}

// clearMovieOfTheWeek 在同一事务中取消其他电影的每周推荐，advisory lock 让并发的设置串行执行
func clearMovieOfTheWeek(ctx context.Context, tx *sql.Tx, keepID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, movieOfTheWeekLock); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE movies SET movie_of_the_week = false, updated_at = now(), version = version + 1
		WHERE movie_of_the_week AND id <> $1`, keepID)
	return err
}

func replacePlatforms(ctx context.Context, tx *sql.Tx, movieID int64, platforms []StreamingPlatform) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM movie_streaming_platforms WHERE movie_id = $1`, movieID); err != nil {
		return err
	}

	for i, p := range platforms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO movie_streaming_platforms (movie_id, position, service_id, url)
			VALUES ($1, $2, $3, $4)`, movieID, i, p.ServiceID, p.URL)
		if err != nil {
			return err
		}
	}

	return nil
}

// Insert 新增电影；带每周推荐标记时在同一事务里清除其他电影的标记
func (m MovieModel) Insert(ctx context.Context, movie *Movie) error {
	if err := m.checkServices(ctx, movie.StreamingPlatforms); err != nil {
		return err
	}

	movie.normalize()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if movie.MovieOfTheWeek {
		if err := clearMovieOfTheWeek(ctx, tx, 0); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO movies (title, director, release_year, genres, rating, runtime, description, cast_members,
			language, country, budget, box_office, awards, is_released, movie_of_the_week, trailer_url,
			portrait_image, landscape_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at, version`

	args := []any{
		movie.Title,
		movie.Director,
		movie.ReleaseYear,
		pq.Array(movie.Genres),
		movie.Rating,
		movie.Runtime,
		movie.Description,
		pq.Array(movie.Cast),
		movie.Language,
		movie.Country,
		movie.Budget,
		movie.BoxOffice,
		pq.Array(movie.Awards),
		movie.IsReleased,
		movie.MovieOfTheWeek,
		movie.TrailerURL,
		movie.PortraitImage,
		movie.LandscapeImage,
	}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&movie.ID, &movie.CreatedAt, &movie.UpdatedAt, &movie.Version)
	if err != nil {
		if isUniqueViolation(err, "movies_movie_of_the_week_idx") {
			return ErrEditConflict
		}
		return err
	}

	if err := replacePlatforms(ctx, tx, movie.ID, movie.StreamingPlatforms); err != nil {
		return err
	}

	return tx.Commit()
}

func (m MovieModel) Get(ctx context.Context, id int64) (*Movie, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`

	var movie Movie

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(qctx, query, id).Scan(movieScanDest(&movie)...)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if err := m.attachPlatforms(ctx, []*Movie{&movie}); err != nil {
		return nil, err
	}

	return &movie, nil
}

// GetFeatured 返回每周电影，没有时返回 ErrRecordNotFound
func (m MovieModel) GetFeatured(ctx context.Context) (*Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE movie_of_the_week LIMIT 1`

	var movie Movie

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := m.DB.QueryRowContext(qctx, query).Scan(movieScanDest(&movie)...)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if err := m.attachPlatforms(ctx, []*Movie{&movie}); err != nil {
		return nil, err
	}

	return &movie, nil
}

// Update 使用 version 做乐观锁，同时整体替换 streaming platforms
func (m MovieModel) Update(ctx context.Context, movie *Movie) error {
	if err := m.checkServices(ctx, movie.StreamingPlatforms); err != nil {
		return err
	}

	movie.normalize()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if movie.MovieOfTheWeek {
		if err := clearMovieOfTheWeek(ctx, tx, movie.ID); err != nil {
			return err
		}
	}

	query := `
		UPDATE movies
		SET title = $1, director = $2, release_year = $3, genres = $4, rating = $5, runtime = $6,
			description = $7, cast_members = $8, language = $9, country = $10, budget = $11, box_office = $12,
			awards = $13, is_released = $14, movie_of_the_week = $15, trailer_url = $16, portrait_image = $17,
			landscape_image = $18, updated_at = now(), version = version + 1
		WHERE id = $19 AND version = $20
		RETURNING updated_at, version`

	args := []any{
		movie.Title,
		movie.Director,
		movie.ReleaseYear,
		pq.Array(movie.Genres),
		movie.Rating,
		movie.Runtime,
		movie.Description,
		pq.Array(movie.Cast),
		movie.Language,
		movie.Country,
		movie.Budget,
		movie.BoxOffice,
		pq.Array(movie.Awards),
		movie.IsReleased,
		movie.MovieOfTheWeek,
		movie.TrailerURL,
		movie.PortraitImage,
		movie.LandscapeImage,
		movie.ID,
		movie.Version,
	}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&movie.UpdatedAt, &movie.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		case isUniqueViolation(err, "movies_movie_of_the_week_idx"):
			return ErrEditConflict
		default:
			return err
		}
	}

	if err := replacePlatforms(ctx, tx, movie.ID, movie.StreamingPlatforms); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete 硬删除，评论、片单和首页栏目里的引用保留
func (m MovieModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	query := `DELETE FROM movies WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, query, id)
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

// GetAll 按搜索条件返回电影和分页信息
func (m MovieModel) GetAll(ctx context.Context, q MovieQuery) ([]*Movie, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), %s
		FROM movies
		WHERE ($1 = '' OR movies.title ILIKE $1 OR movies.director ILIKE $1 OR movies.description ILIKE $1
			OR EXISTS (SELECT 1 FROM unnest(movies.cast_members) AS member WHERE member ILIKE $1))
		AND ($2 = '' OR $2 = ANY(movies.genres))
		AND ($3 = 0 OR movies.release_year = $3)
		AND ($4::double precision IS NULL OR movies.rating >= $4)
		ORDER BY movies.%s %s, movies.id ASC
		LIMIT $5 OFFSET $6`, movieColumns, q.sortColumn(), q.sortDirection())

	var minRating sql.NullFloat64
	if q.MinRating != nil {
		minRating = sql.NullFloat64{Float64: *q.MinRating, Valid: true}
	}

	args := []any{likePattern(q.Text), q.Genre, q.Year, minRating, q.limit(), q.offset()}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	movies := []*Movie{}

	for rows.Next() {
		var movie Movie

		dest := append([]any{&totalRecords}, movieScanDest(&movie)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, Metadata{}, err
		}

		movies = append(movies, &movie)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	if err := m.attachPlatforms(ctx, movies); err != nil {
		return nil, Metadata{}, err
	}

	return movies, calculateMetadata(totalRecords, q.Page, q.PageSize), nil
}

// GetByIDs 返回存在的电影，顺序与 ids 一致，不存在的 id 被跳过
func (m MovieModel) GetByIDs(ctx context.Context, ids []int64) ([]*Movie, error) {
	if len(ids) == 0 {
		return []*Movie{}, nil
	}

	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = ANY($1)`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(qctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*Movie, len(ids))
	for rows.Next() {
		var movie Movie
		if err := rows.Scan(movieScanDest(&movie)...); err != nil {
			return nil, err
		}
		byID[movie.ID] = &movie
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	movies := make([]*Movie, 0, len(byID))
	for _, id := range ids {
		if movie, ok := byID[id]; ok {
			movies = append(movies, movie)
		}
	}

	if err := m.attachPlatforms(ctx, movies); err != nil {
		return nil, err
	}

	return movies, nil
}

// Options 首页栏目编辑器使用的电影列表，按标题排序
func (m MovieModel) Options(ctx context.Context) ([]*MovieSummary, error) {
	query := `
		SELECT id, title, release_year, portrait_image, genres, director, cast_members
		FROM movies
		ORDER BY title ASC, id ASC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []*MovieSummary{}
	for rows.Next() {
		var s MovieSummary
		err := rows.Scan(&s.ID, &s.Title, &s.ReleaseYear, &s.PortraitImage, pq.Array(&s.Genres), &s.Director, pq.Array(&s.Cast))
		if err != nil {
			return nil, err
		}
		options = append(options, &s)
	}

	return options, rows.Err()
}

// GenresInUse 返回至少有一部电影使用的类型
func (m MovieModel) GenresInUse(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT unnest(genres) AS genre FROM movies ORDER BY genre`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := []string{}
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}

	return genres, rows.Err()
}

// attachPlatforms 一次查询填充多部电影的 streaming platforms 和服务信息
func (m MovieModel) attachPlatforms(ctx context.Context, movies []*Movie) error {
	if len(movies) == 0 {
		return nil
	}

	ids := make([]int64, len(movies))
	byID := make(map[int64]*Movie, len(movies))
	for i, movie := range movies {
		ids[i] = movie.ID
		byID[movie.ID] = movie
		movie.StreamingPlatforms = []StreamingPlatform{}
	}

	query := `
		SELECT p.movie_id, p.url, s.id, s.created_at, s.updated_at, s.name, s.base_url, s.icon, s.is_active
		FROM movie_streaming_platforms p
		INNER JOIN streaming_services s ON s.id = p.service_id
		WHERE p.movie_id = ANY($1)
		ORDER BY p.movie_id, p.position`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			movieID int64
			p       StreamingPlatform
			s       StreamingService
		)
		err := rows.Scan(&movieID, &p.URL, &s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Name, &s.BaseURL, &s.Icon, &s.IsActive)
		if err != nil {
			return err
		}
		p.ServiceID = s.ID
		p.Service = &s

		if movie, ok := byID[movieID]; ok {
			movie.StreamingPlatforms = append(movie.StreamingPlatforms, p)
		}
	}

	return rows.Err()
}
