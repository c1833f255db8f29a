package log

import (
	"io"
	"regexp"
	"sync"
)

// Rule 脱敏规则
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// FieldRule 匹配 JSON 字段 "field":"value" 并替换其值
func FieldRule(field string) Rule {
	return Rule{
		Name:        field,
		Pattern:     regexp.MustCompile(`("` + regexp.QuoteMeta(field) + `"\s*:\s*")[^"]*(")`),
		Replacement: "${1}******${2}",
	}
}

var (
	// BearerRule 隐藏 Authorization 头中的令牌
	BearerRule = Rule{
		Name:        "bearer",
		Pattern:     regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-_.~+/]+=*`),
		Replacement: "${1}******",
	}

	// JWTRule 隐藏日志正文里出现的 JWT
	JWTRule = Rule{
		Name:        "jwt",
		Pattern:     regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`),
		Replacement: "******",
	}
)

// DefaultRules 令牌相关的默认规则
func DefaultRules() []Rule {
	return []Rule{
		BearerRule,
		JWTRule,
		FieldRule("access_token"),
		FieldRule("refresh_token"),
		FieldRule("code_verifier"),
		FieldRule("accessToken"),
		FieldRule("refreshToken"),
	}
}

// Redactor 按规则改写日志内容
type Redactor struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewRedactor(rules ...Rule) *Redactor {
	return &Redactor{rules: rules}
}

// Add 追加规则，同名规则会被替换
func (r *Redactor) Add(rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rules {
		replaced := false
		for i := range r.rules {
			if r.rules[i].Name == rule.Name {
				r.rules[i] = rule
				replaced = true
				break
			}
		}
		if !replaced {
			r.rules = append(r.rules, rule)
		}
	}
}

// Redact 返回脱敏后的内容
func (r *Redactor) Redact(p []byte) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		p = rule.Pattern.ReplaceAll(p, []byte(rule.Replacement))
	}
	return p
}

// Wrap 包装 writer
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactWriter{w: w, r: r}
}

type redactWriter struct {
	w io.Writer
	r *Redactor
}

// Write 返回原始长度，避免 zerolog 误判短写
func (rw *redactWriter) Write(p []byte) (int, error) {
	if _, err := rw.w.Write(rw.r.Redact(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
