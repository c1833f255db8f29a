package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want bool
	}{
		{"仅端口", ":8080", true},
		{"本地地址", "127.0.0.1:9000", true},
		{"主机名", "localhost:80", true},
		{"IPv6", "[::1]:8080", true},
		{"空地址", "", false},
		{"缺少端口", "localhost", false},
		{"端口越界", ":70000", false},
		{"端口为零", ":0", false},
		{"非法主机", "bad_host:80", false},
		{"连字符开头", "-host:80", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.addr))
		})
	}
}
