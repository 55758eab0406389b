package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Disk 把文件写到本地目录，返回以 URLPrefix 开头的路径
type Disk struct {
	Root      string
	URLPrefix string
}

func NewDisk(root, urlPrefix string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Disk{Root: root, URLPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

func (d *Disk) Save(ctx context.Context, folder string, u Upload) (string, error) {
	c, err := inspect(folder, u)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(d.Root, filepath.FromSlash(c.name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	// 先写临时文件再 rename，读者不会看到写了一半的文件
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, c.reader()); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}

	return path.Join(d.URLPrefix, c.name), nil
}

// Delete 删除不存在的文件不算错误
func (d *Disk) Delete(ctx context.Context, ref string) error {
	rel, ok := d.relative(ref)
	if !ok {
		return nil
	}

	err := os.Remove(filepath.Join(d.Root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *Disk) relative(ref string) (string, bool) {
	if ref == "" || !strings.HasPrefix(ref, d.URLPrefix+"/") {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(ref, d.URLPrefix+"/"))
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}
