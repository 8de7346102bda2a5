// Package s3 把对象上传到 S3 兼容的对象存储 (AWS S3, MinIO)
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"hoover/pkg/core"
	"hoover/pkg/tube"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// API 是 Tube 用到的 S3 客户端方法子集
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Tube 把每个对象存为 {prefix}/{basename}，元数据写进对象的用户元数据
type Tube struct {
	client  API
	bucket  string
	prefix  string
	hashKey string
	closed  bool
}

// NewClient 按配置创建 S3 客户端
func NewClient(ctx context.Context, cfg tube.S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	// 没有静态密钥时走默认凭据链 (环境变量、实例角色)
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO 需要 path style: http://host:9000/bucket/key
			o.UsePathStyle = true
		}
	}), nil
}

// Open 创建客户端并确保 bucket 存在
func Open(ctx context.Context, cfg tube.S3Config) (*Tube, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", tube.ErrDestinationUnwritable)
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return OpenWithClient(ctx, client, cfg)
}

// OpenWithClient 使用给定客户端 (测试时注入假实现)
func OpenWithClient(ctx context.Context, client API, cfg tube.S3Config) (*Tube, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", tube.ErrDestinationUnwritable)
	}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		_, cerr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
		var owned *s3types.BucketAlreadyOwnedByYou
		if cerr != nil && !errors.As(cerr, &owned) {
			return nil, fmt.Errorf("%w: ensure bucket %s: %w", tube.ErrDestinationUnwritable, cfg.Bucket, cerr)
		}
		slog.Info("bucket created", slog.String("bucket", cfg.Bucket))
	}
	return &Tube{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, hashKey: cfg.HashField}, nil
}

func (t *Tube) Destination() string {
	return "s3://" + path.Join(t.bucket, t.prefix)
}

// Key 返回对象在 bucket 中的 key
func (t *Tube) Key(filename string) string {
	return path.Join(t.prefix, filepath.Base(filename))
}

func (t *Tube) Send(ctx context.Context, obj *core.DataObject, h core.Header) error {
	if t == nil || t.closed {
		return tube.ErrTubeClosed
	}
	contentType := "application/octet-stream"
	if h.Compression == "gz" {
		contentType = "application/gzip"
	}

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(t.Key(h.Filename)),
		Body:          bytes.NewReader(obj.Bytes()),
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(contentType),
		Metadata:      tube.StringMetadata(h, t.hashKey, true),
	})
	if err != nil {
		return fmt.Errorf("%w: s3 put %s: %w", tube.ErrPublishError, h.Filename, err)
	}
	return nil
}

// Close 没有需要释放的连接 (SDK 客户端自行管理连接池)
func (t *Tube) Close() error {
	if t != nil {
		t.closed = true
	}
	return nil
}
