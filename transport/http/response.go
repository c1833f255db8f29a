package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/studycore/errors"
)

const (
	defaultSuccessMsg = "success"
	defaultErrorMsg   = "operation failed"

	successCode = http.StatusOK
)

// Response 控制接口的统一响应结构
type Response[T any] struct {
	Code   int    `json:"code"`             // 业务状态码
	Reason string `json:"reason,omitempty"` // 错误分类，如 STORE_UNAVAILABLE
	Msg    string `json:"msg,omitempty"`
	Data   T      `json:"data,omitempty"`
}

// GinJSON 写入成功响应
//
//	GinJSON(c, offline.Message{Type: "VERSION", Version: "v1"})
//	// {"code":200, "msg":"success", "data":{"type":"VERSION","version":"v1"}}
func GinJSON(c *gin.Context, data any) {
	if c == nil {
		return
	}

	c.JSON(http.StatusOK, &Response[any]{
		Code: successCode,
		Msg:  defaultSuccessMsg,
		Data: data,
	})
}

// GinJSONE 写入失败响应，HTTP 状态码固定为 200
//
// data 支持:
//   - error: 优先取 errors.Error 的消息和 reason
//   - string: 直接作为消息
//   - nil: 默认错误消息
//   - 其他类型: 作为 data 返回
func GinJSONE(c *gin.Context, code int, data any) {
	if c == nil {
		return
	}

	resp := &Response[any]{Code: code}
	switch v := data.(type) {
	case error:
		resp.Msg, resp.Reason = extractError(v)
	case string:
		resp.Msg = v
	case nil:
		resp.Msg = defaultErrorMsg
	default:
		resp.Data = v
	}

	c.JSON(http.StatusOK, resp)
}

func extractError(err error) (msg, reason string) {
	if err == nil {
		return defaultErrorMsg, ""
	}
	if e := errors.FromError(err); e != nil && e.Message != "" {
		return e.Message, e.Reason
	}
	return err.Error(), ""
}

func Success[T any](data T) *Response[T] {
	return &Response[T]{
		Code: successCode,
		Msg:  defaultSuccessMsg,
		Data: data,
	}
}

func Failure(code int, msg string) *Response[any] {
	return &Response[any]{
		Code: code,
		Msg:  msg,
	}
}
