package minio

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBucketName = errors.New("minio: bucket name cannot be empty")
	ErrEmptyObjectName = errors.New("minio: object name cannot be empty")
	ErrObjectNotFound  = errors.New("minio: object not found")
)

// ObjectError 对象操作错误
type ObjectError struct {
	Bucket    string
	Object    string
	Operation string
	Err       error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("minio: op=%s bucket=%s object=%s: %v", e.Operation, e.Bucket, e.Object, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}
