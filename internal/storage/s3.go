package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config S3 兼容的对象存储（Minio、Wasabi 等）
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

// S3 把文件保存为对象，返回 PublicURL 下的地址
type S3 struct {
	config S3Config
	client s3iface.S3API
}

func NewS3(config S3Config) (*S3, error) {
	creds := credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, "")
	sess, err := session.NewSession(&aws.Config{
		Credentials:      creds,
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	return &S3{config: config, client: s3.New(sess)}, nil
}

func (s *S3) key(name string) string {
	return path.Join(s.config.Prefix, name)
}

func (s *S3) Save(ctx context.Context, folder string, u Upload) (string, error) {
	c, err := inspect(folder, u)
	if err != nil {
		return "", err
	}

	key := s.key(c.name)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        c.reader(),
		ContentType: aws.String(c.contentType),
	})
	if err != nil {
		return "", err
	}

	return s.publicURL(key), nil
}

func (s *S3) Delete(ctx context.Context, ref string) error {
	key, ok := s.objectKey(ref)
	if !ok {
		return nil
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3) publicURL(key string) string {
	base := strings.TrimRight(s.config.PublicURL, "/")
	if base == "" {
		base = strings.TrimRight(s.config.Endpoint, "/") + "/" + s.config.Bucket
	}
	return base + "/" + key
}

func (s *S3) objectKey(ref string) (string, bool) {
	prefix := s.publicURL("")
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(ref, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
