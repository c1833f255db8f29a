package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kochabx/studycore/log"
)

// Client 单桶对象存储客户端
type Client struct {
	config *Config
	client *minio.Client
	logger *log.Logger
}

// New 创建客户端，桶不存在时自动创建
func New(ctx context.Context, cfg *Config, logger *log.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("minio: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.G
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}

	c := &Client{config: cfg, client: mc, logger: logger}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("minio: check bucket %s: %w", c.config.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return fmt.Errorf("minio: create bucket %s: %w", c.config.Bucket, err)
	}
	c.logger.Info().Str("bucket", c.config.Bucket).Msg("minio bucket created")
	return nil
}

// Bucket 返回使用的桶名
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// Put 写入对象
func (c *Client) Put(ctx context.Context, object string, data []byte, contentType string) error {
	if object == "" {
		return ErrEmptyObjectName
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	_, err := c.client.PutObject(ctx, c.config.Bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return &ObjectError{Bucket: c.config.Bucket, Object: object, Operation: "put", Err: err}
	}
	return nil
}

// Get 读取对象，不存在时返回 ErrObjectNotFound
func (c *Client) Get(ctx context.Context, object string) ([]byte, error) {
	if object == "" {
		return nil, ErrEmptyObjectName
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	obj, err := c.client.GetObject(ctx, c.config.Bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.objectErr("get", object, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, c.objectErr("get", object, err)
	}
	return data, nil
}

// List 列出前缀下的对象名
func (c *Client) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	var names []string
	for info := range c.client.ListObjects(ctx, c.config.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: recursive}) {
		if info.Err != nil {
			return nil, c.objectErr("list", prefix, info.Err)
		}
		names = append(names, info.Key)
	}
	return names, nil
}

// RemovePrefix 删除前缀下的全部对象
func (c *Client) RemovePrefix(ctx context.Context, prefix string) error {
	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for info := range c.client.ListObjects(ctx, c.config.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if info.Err != nil {
				c.logger.Warn().Err(info.Err).Str("prefix", prefix).Msg("minio list failed")
				return
			}
			select {
			case objects <- info:
			case <-ctx.Done():
				return
			}
		}
	}()

	var first error
	for rerr := range c.client.RemoveObjects(ctx, c.config.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if first == nil {
			first = c.objectErr("remove", rerr.ObjectName, rerr.Err)
		}
	}
	if first != nil {
		return first
	}
	return ctx.Err()
}

// Close 预留
func (c *Client) Close() error {
	return nil
}

func (c *Client) objectErr(op, object string, err error) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		err = ErrObjectNotFound
	}
	return &ObjectError{Bucket: c.config.Bucket, Object: object, Operation: op, Err: err}
}
