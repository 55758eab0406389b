package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/liliang-cn/moviematic/internal/storage"
)

// multipart 请求：JSON 放在 data 字段，文件放在各自的字段
const multipartMemory = 8 << 20

type uploadField struct {
	name     string
	maxBytes int64
}

// readInput 同时支持 application/json 和 multipart/form-data，返回收到的文件
func (app *application) readInput(w http.ResponseWriter, r *http.Request, dst any, fields ...uploadField) (map[string]*multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, app.readJSON(w, r, dst)
	}

	var total int64 = maxJSONBytes
	for _, f := range fields {
		total += f.maxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, total+maxJSONBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return nil, fmt.Errorf("%w: request body too large", storage.ErrTooLarge)
		}
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	if raw := r.FormValue("data"); raw != "" {
		if err := decodeJSONString(raw, dst); err != nil {
			return nil, err
		}
	}

	files := make(map[string]*multipart.FileHeader)
	for _, f := range fields {
		if headers := r.MultipartForm.File[f.name]; len(headers) > 0 {
			files[f.name] = headers[0]
		}
	}

	return files, nil
}

// pendingUploads 记录本次请求保存的文件，数据库写入失败时删除
type pendingUploads struct {
	store storage.Store
	saved []string
}

func (p *pendingUploads) save(ctx context.Context, folder string, field uploadField, fh *multipart.FileHeader) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	ref, err := p.store.Save(ctx, folder, storage.Upload{
		Field:       field.name,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        file,
		MaxBytes:    field.maxBytes,
	})
	if err != nil {
		return "", err
	}

	p.saved = append(p.saved, ref)
	return ref, nil
}

// discard 尽力删除，忽略错误
func (p *pendingUploads) discard(ctx context.Context) {
	for _, ref := range p.saved {
		p.store.Delete(ctx, ref)
	}
	p.saved = nil
}

// removeReplaced 数据库更新成功后删除被替换的旧文件
func (app *application) removeReplaced(ctx context.Context, refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := app.storage.Delete(ctx, ref); err != nil {
			app.logger.PrintError(err, map[string]string{"file": ref})
		}
	}
}

// isUploadError 判断是否是上传文件本身的问题
func isUploadError(err error) bool {
	return errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrUnsupportedType)
}
