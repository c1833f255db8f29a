package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	serrors "github.com/kochabx/studycore/errors"
)

func TestGinJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		data any
		want string
	}{
		{"字符串", "v1", `{"code":200,"msg":"success","data":"v1"}`},
		{"对象", map[string]string{"type": "VERSION"}, `{"code":200,"msg":"success","data":{"type":"VERSION"}}`},
		{"空数据", nil, `{"code":200,"msg":"success"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSON(c, tt.data)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGinJSONE(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		code int
		data any
		want string
	}{
		{"分类错误", 503, serrors.StoreUnavailable("database locked"), `{"code":503,"reason":"STORE_UNAVAILABLE","msg":"database locked"}`},
		{"普通错误", 500, errors.New("boom"), `{"code":500,"msg":"boom"}`},
		{"字符串", 400, "bad message", `{"code":400,"msg":"bad message"}`},
		{"空值", 500, nil, `{"code":500,"msg":"operation failed"}`},
		{"数据对象", 207, map[string]any{"failed": 1}, `{"code":207,"data":{"failed":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSONE(c, tt.code, tt.data)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGinJSONWithNilContext(t *testing.T) {
	// 不应 panic
	GinJSON(nil, "test")
	GinJSONE(nil, 500, "error")
}

func TestSuccessFailure(t *testing.T) {
	ok := Success("data")
	assert.Equal(t, 200, ok.Code)
	assert.Equal(t, "success", ok.Msg)

	fail := Failure(404, "not found")
	assert.Equal(t, 404, fail.Code)
	assert.Nil(t, fail.Data)
}
