// Package validation настраивает валидатор gin: имена полей в ошибках
// берутся из json-тегов, ошибки отдаются клиенту в виде 422.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var once sync.Once

// Setup регистрирует имена полей и собственные правила. Безопасно вызывать
// многократно.
func Setup() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("payment_method", oneOfValidator("cash", "card", "transfer", "wallet"))
		_ = v.RegisterValidation("driver_status", oneOfValidator("available", "busy", "offline"))
		_ = v.RegisterValidation("trip_status", oneOfValidator("in_progress", "completed", "cancelled"))
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func oneOfValidator(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	}
}

// Errors - ошибки по полям: field -> список сообщений
type Errors map[string][]string

// Error собирает ошибку валидации вне биндинга (например, бизнес-проверка
// уникальности email).
type Error struct {
	Fields Errors
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewError(field, message string) *Error {
	return &Error{Fields: Errors{field: {message}}}
}

// Bind разбирает JSON тело в req. При ошибке сам отвечает 422 и возвращает false.
func Bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		Render(c, err)
		return false
	}
	return true
}

// BindQuery - то же для query-параметров
func BindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		Render(c, err)
		return false
	}
	return true
}

// Render отвечает 422 с описанием ошибок по полям
func Render(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"message": "Переданные данные некорректны",
		"errors":  Translate(err),
	})
}

// Translate превращает ошибку биндинга в ошибки по полям
func Translate(err error) Errors {
	out := Errors{}

	var verrs validator.ValidationErrors
	var custom *Error
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &custom):
		return custom.Fields
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			out[fe.Field()] = append(out[fe.Field()], message(fe))
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		out[field] = []string{fmt.Sprintf("должно быть типа %s", typeErr.Type.String())}
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		out["body"] = []string{"некорректный JSON"}
	default:
		out["body"] = []string{err.Error()}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "email":
		return "некорректный email"
	case "min":
		return fmt.Sprintf("минимальное значение: %s", fe.Param())
	case "max":
		return fmt.Sprintf("максимальное значение: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("должно быть больше %s", fe.Param())
	case "gte":
		return fmt.Sprintf("должно быть не меньше %s", fe.Param())
	case "lte":
		return fmt.Sprintf("должно быть не больше %s", fe.Param())
	case "eqfield":
		return fmt.Sprintf("должно совпадать с %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("допустимые значения: %s", fe.Param())
	case "payment_method":
		return "допустимые значения: cash card transfer wallet"
	case "driver_status":
		return "допустимые значения: available busy offline"
	case "trip_status":
		return "допустимые значения: in_progress completed cancelled"
	case "latitude", "longitude":
		return "некорректная координата"
	default:
		return fmt.Sprintf("не прошло проверку %s", fe.Tag())
	}
}
