package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	MaxMovieImageBytes  = 5 << 20
	MaxServiceIconBytes = 2 << 20
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("only image files are allowed")
)

// Upload 一个待保存的上传文件
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Body        io.Reader
	MaxBytes    int64
}

// Store 保存文件并返回作为引用存入数据库的路径
type Store interface {
	Save(ctx context.Context, folder string, u Upload) (string, error)
	Delete(ctx context.Context, ref string) error
}

// checked 是通过大小和类型校验、完全读入内存的文件
type checked struct {
	name        string
	contentType string
	data        []byte
}

// inspect 在写入任何内容之前完成大小和类型校验
func inspect(folder string, u Upload) (*checked, error) {
	if !strings.HasPrefix(u.ContentType, "image/") {
		return nil, ErrUnsupportedType
	}

	limit := u.MaxBytes
	if limit <= 0 {
		limit = MaxMovieImageBytes
	}

	data, err := io.ReadAll(io.LimitReader(u.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, ErrUnsupportedType
	}

	field := u.Field
	if field == "" {
		field = "file"
	}

	return &checked{
		name:        path.Join(folder, fmt.Sprintf("%s-%s%s", field, uuid.NewString(), mtype.Extension())),
		contentType: mtype.String(),
		data:        data,
	}, nil
}

func (c *checked) reader() io.ReadSeeker {
	return bytes.NewReader(c.data)
}
