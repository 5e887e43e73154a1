package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "spendtrend/internal/errors"
)

var columnNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// QueryValidator binds URL query parameters into tagged structs and checks
// them with validator struct tags
type QueryValidator struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewQueryValidator creates a query validator
func NewQueryValidator(logger *slog.Logger) *QueryValidator {
	v := validator.New()
	_ = v.RegisterValidation("column", isColumnName)

	// Report parameters by their query name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
	})

	return &QueryValidator{
		validator: v,
		logger:    logger.With(slog.String("component", "query_validator")),
	}
}

// Bind fills the string, int and bool fields of the struct dst points to from
// r's query parameters named by their `query` tags, then validates it. The
// returned error is an *errors.APIError describing the first bad parameter.
func (v *QueryValidator) Bind(r *http.Request, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind target must be a struct pointer, got %T", dst)
	}
	rv = rv.Elem()
	rt := rv.Type()
	query := r.URL.Query()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name := strings.SplitN(field.Tag.Get("query"), ",", 2)[0]
		if name == "" || !query.Has(name) {
			continue
		}
		raw := strings.TrimSpace(query.Get(name))

		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return apierrors.InvalidParameter(name, "must be an integer")
			}
			fv.SetInt(int64(n))
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return apierrors.InvalidParameter(name, "must be true or false")
			}
			fv.SetBool(b)
		default:
			return fmt.Errorf("unsupported query field %s of kind %s", field.Name, fv.Kind())
		}
	}

	if err := v.validator.Struct(dst); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return err
		}
		fe := verrs[0]
		v.logger.DebugContext(r.Context(), "query parameter rejected",
			slog.String("parameter", fe.Field()),
			slog.String("rule", fe.Tag()),
		)
		return apierrors.InvalidParameter(fe.Field(), formatValidationError(fe))
	}
	return nil
}

// ValidateColumn checks a path segment naming a panel column
func (v *QueryValidator) ValidateColumn(name, value string) error {
	if !columnNamePattern.MatchString(value) {
		return apierrors.InvalidParameter(name, "must be a lower-case column name")
	}
	return nil
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	param := err.Param()
	switch err.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", param)
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", param)
	case "column":
		return "must be a lower-case column name"
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}

func isColumnName(fl validator.FieldLevel) bool {
	return columnNamePattern.MatchString(fl.Field().String())
}
