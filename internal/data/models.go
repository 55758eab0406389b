package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// 每次数据库操作在调用方的请求上下文之上再限制 3 秒
const queryTimeout = 3 * time.Second

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrEditConflict         = errors.New("edit conflict")
	ErrDuplicateEmail       = errors.New("duplicate email")
	ErrDuplicateReview      = errors.New("you have already reviewed this movie")
	ErrAlreadyInWatchlist   = errors.New("movie already in watchlist")
	ErrDuplicateServiceName = errors.New("streaming service with this name already exists")
)

// InvalidReferenceError 请求里引用了不存在的记录
type InvalidReferenceError struct {
	Kind      string
	Missing   []int64
	Requested int
	Resolved  int
}

func (e *InvalidReferenceError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("invalid %s reference: %d requested, %d found, missing [%s]",
		e.Kind, e.Requested, e.Resolved, strings.Join(ids, ", "))
}

// missingIDs 按请求顺序返回未解析到的 id
func missingIDs(kind string, requested []int64, found map[int64]bool) error {
	var missing []int64
	for _, id := range requested {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &InvalidReferenceError{
		Kind:      kind,
		Missing:   missing,
		Requested: len(requested),
		Resolved:  len(found),
	}
}

// isUniqueViolation 检查是否违反了指定的唯一约束，constraint 为空时匹配任意唯一约束
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}

type Models struct {
	Movies      MovieModel
	Users       UserModel
	Reviews     ReviewModel
	Watchlist   WatchlistModel
	Services    ServiceModel
	Sections    SectionModel
	Permissions PermissionModel
}

func NewModels(db *sql.DB) Models {
	return Models{
		Movies:      MovieModel{DB: db},
		Users:       UserModel{DB: db},
		Reviews:     ReviewModel{DB: db},
		Watchlist:   WatchlistModel{DB: db},
		Services:    ServiceModel{DB: db},
		Sections:    SectionModel{DB: db},
		Permissions: PermissionModel{},
	}
}
