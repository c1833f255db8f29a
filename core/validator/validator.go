// Package validator wraps go-playground/validator with translated messages.
package validator

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Validator 校验器接口
type Validator interface {
	Struct(s any) error
	StructCtx(ctx context.Context, s any) error
}

// Validate 全局校验器
var Validate Validator = New("en")

// FieldErrors 校验失败的字段集合
type FieldErrors struct {
	Fields   []string
	Messages []string
}

func (e *FieldErrors) Error() string {
	return strings.Join(e.Messages, "; ")
}

type validatorImpl struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New 创建校验器，lang 支持 en 与 zh
func New(lang string) Validator {
	v := &validatorImpl{validate: validator.New(validator.WithRequiredStructEnabled())}

	uni := ut.New(en.New(), en.New(), zh.New())
	trans, ok := uni.GetTranslator(lang)
	if !ok {
		trans, _ = uni.GetTranslator("en")
		lang = "en"
	}
	v.trans = trans

	switch lang {
	case "zh":
		_ = zh_translations.RegisterDefaultTranslations(v.validate, trans)
	default:
		_ = en_translations.RegisterDefaultTranslations(v.validate, trans)
	}
	return v
}

func (v *validatorImpl) Struct(s any) error {
	return v.StructCtx(context.Background(), s)
}

func (v *validatorImpl) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	return v.translate(v.validate.StructCtx(ctx, s))
}

func (v *validatorImpl) translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fe := &FieldErrors{}
	for _, e := range verrs {
		fe.Fields = append(fe.Fields, e.Namespace())
		fe.Messages = append(fe.Messages, e.Translate(v.trans))
	}
	return fe
}
