package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func pngUpload(field string, size int, limit int64) Upload {
	data := append([]byte{}, pngHeader...)
	if size > len(data) {
		data = append(data, bytes.Repeat([]byte{0}, size-len(data))...)
	}
	return Upload{
		Field:       field,
		Filename:    "poster.png",
		ContentType: "image/png",
		Body:        bytes.NewReader(data),
		MaxBytes:    limit,
	}
}

func TestDiskSaveAndDelete(t *testing.T) {
	root := t.TempDir()
	disk, err := NewDisk(root, "uploads")
	require.NoError(t, err)

	ref, err := disk.Save(context.Background(), "movies", pngUpload("portrait_image", 1024, MaxMovieImageBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/movies/portrait_image-"), ref)
	assert.True(t, strings.HasSuffix(ref, ".png"), ref)

	onDisk := filepath.Join(root, strings.TrimPrefix(ref, "/uploads/"))
	info, err := os.Stat(onDisk)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, info.Size())

	require.NoError(t, disk.Delete(context.Background(), ref))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// 重复删除和外部路径都被忽略
	assert.NoError(t, disk.Delete(context.Background(), ref))
	assert.NoError(t, disk.Delete(context.Background(), "/uploads/../../etc/passwd"))
	assert.NoError(t, disk.Delete(context.Background(), "https://cdn.example.com/x.png"))
}

func TestDiskRejectsBeforeWriting(t *testing.T) {
	root := t.TempDir()
	disk, err := NewDisk(root, "/uploads")
	require.NoError(t, err)

	_, err = disk.Save(context.Background(), "icons", pngUpload("icon", MaxServiceIconBytes+1, MaxServiceIconBytes))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = disk.Save(context.Background(), "icons", Upload{
		Field:       "icon",
		ContentType: "text/plain",
		Body:        strings.NewReader("hello"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	// 声明为图片但内容不是
	_, err = disk.Save(context.Background(), "icons", Upload{
		Field:       "icon",
		ContentType: "image/png",
		Body:        strings.NewReader("#!/bin/sh\necho hi\n"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeS3 struct {
	s3iface.S3API
	puts    []*s3.PutObjectInput
	deletes []string
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if _, err := io.Copy(io.Discard, in.Body); err != nil {
		return nil, err
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3SaveAndDelete(t *testing.T) {
	fake := &fakeS3{}
	store := &S3{
		config: S3Config{Bucket: "media", Prefix: "moviematic", PublicURL: "https://cdn.example.com/"},
		client: fake,
	}

	ref, err := store.Save(context.Background(), "icons", pngUpload("icon", 512, MaxServiceIconBytes))
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "image/png", aws.StringValue(fake.puts[0].ContentType))
	assert.Equal(t, "media", aws.StringValue(fake.puts[0].Bucket))

	key := aws.StringValue(fake.puts[0].Key)
	assert.True(t, strings.HasPrefix(key, "moviematic/icons/icon-"), key)
	assert.Equal(t, "https://cdn.example.com/"+key, ref)

	require.NoError(t, store.Delete(context.Background(), ref))
	assert.Equal(t, []string{key}, fake.deletes)

	require.NoError(t, store.Delete(context.Background(), "/uploads/local.png"))
	assert.Len(t, fake.deletes, 1)
}
