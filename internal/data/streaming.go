package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/liliang-cn/moviematic/internal/validator"
)

type StreamingService struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	Icon      string    `json:"icon,omitempty"`
	IsActive  bool      `json:"is_active"`
}

func ValidateService(v *validator.Validator, s *StreamingService) {
	v.Check(validator.NotBlank(s.Name), "name", "must be provided")
	v.Check(len(s.Name) <= 100, "name", "must not be more than 100 bytes long")
	v.Check(validator.NotBlank(s.BaseURL), "base_url", "must be provided")
	v.Check(s.BaseURL == "" || validator.AbsoluteURL(s.BaseURL), "base_url", "must be an absolute http(s) URL")
}

type ServiceModel struct {
	DB *sql.DB
}

const serviceColumns = `id, created_at, updated_at, name, base_url, icon, is_active`

func scanService(row interface{ Scan(...any) error }, s *StreamingService) error {
	return row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Name, &s.BaseURL, &s.Icon, &s.IsActive)
}

// nameTaken 名称忽略大小写比较，excludeID 为正数时排除自身
func (m ServiceModel) nameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM streaming_services WHERE lower(name) = lower($1) AND id <> $2)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var taken bool
	err := m.DB.QueryRowContext(ctx, query, strings.TrimSpace(name), excludeID).Scan(&taken)
	return taken, err
}

func (m ServiceModel) Insert(ctx context.Context, s *StreamingService) error {
	s.Name = strings.TrimSpace(s.Name)
	s.BaseURL = strings.TrimSpace(s.BaseURL)

	taken, err := m.nameTaken(ctx, s.Name, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateServiceName
	}

	query := `
		INSERT INTO streaming_services (name, base_url, icon, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err = m.DB.QueryRowContext(ctx, query, s.Name, s.BaseURL, s.Icon, s.IsActive).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "streaming_services_name_idx") {
			return ErrDuplicateServiceName
		}
		return err
	}

	return nil
}

func (m ServiceModel) Get(ctx context.Context, id int64) (*StreamingService, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + serviceColumns + ` FROM streaming_services WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s StreamingService
	err := scanService(m.DB.QueryRowContext(ctx, query, id), &s)
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

// GetAll 按名称排序，activeOnly 为 true 时只返回启用的服务
func (m ServiceModel) GetAll(ctx context.Context, activeOnly bool) ([]*StreamingService, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM streaming_services
		WHERE ($1 = false OR is_active)
		ORDER BY name ASC, id ASC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []*StreamingService{}
	for rows.Next() {
		var s StreamingService
		if err := scanService(rows, &s); err != nil {
			return nil, err
		}
		services = append(services, &s)
	}

	return services, rows.Err()
}

func (m ServiceModel) Update(ctx context.Context, s *StreamingService) error {
	s.Name = strings.TrimSpace(s.Name)
	s.BaseURL = strings.TrimSpace(s.BaseURL)

	taken, err := m.nameTaken(ctx, s.Name, s.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateServiceName
	}

	query := `
		UPDATE streaming_services
		SET name = $1, base_url = $2, icon = $3, is_active = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err = m.DB.QueryRowContext(ctx, query, s.Name, s.BaseURL, s.Icon, s.IsActive, s.ID).Scan(&s.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "streaming_services_name_idx"):
			return ErrDuplicateServiceName
		case errors.Is(err, sql.ErrNoRows):
			return ErrRecordNotFound
		default:
			return err
		}
	}

	return nil
}

// Delete 删除服务，电影上对应的 streaming platform 一并删除
func (m ServiceModel) Delete(ctx context.Context, id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM streaming_services WHERE id = $1`, id)
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
