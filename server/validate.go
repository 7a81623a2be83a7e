package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{message: "Request body is required"}
		}
		return &requestError{message: fmt.Sprintf("Malformed JSON request body: %v", err)}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:         fieldPath(fe),
				RejectedValue: rejectedValue(fe),
				Message:       fieldMessage(fe),
			})
		}
		return &requestError{message: "Request validation failed", fields: fields}
	}
	return nil
}

// fieldPath drops the struct name from the namespace: "trackIds[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func rejectedValue(fe validator.FieldError) string {
	v := fe.Value()
	if v == nil {
		return "null"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "null"
		}
		v = rv.Elem().Interface()
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return "null"
	}
	return fmt.Sprint(v)
}

var indexSuffix = regexp.MustCompile(`\[\d+\]$`)

// labels are the human names used in messages.
var labels = map[string]string{
	"title":    "Title",
	"artist":   "Artist",
	"duration": "Duration",
	"name":     "Name",
	"isPublic": "isPublic field",
	"trackId":  "Track ID",
	"trackIds": "Track IDs list",
	"position": "Position",
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	isElement := indexSuffix.MatchString(field)
	field = indexSuffix.ReplaceAllString(field, "")

	label, ok := labels[field]
	if !ok {
		label = field
	}
	if isElement && field == "trackIds" {
		label = "Track ID"
	}

	switch fe.Tag() {
	case "required":
		switch field {
		case "isPublic", "position":
			return label + " must be specified"
		case "title", "artist", "name", "trackId":
			return label + " must not be blank"
		default:
			return label + " must not be null"
		}
	case "notblank":
		return label + " must not be blank"
	case "min":
		if fe.Kind() == reflect.Slice {
			return label + " must not be empty"
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "gt":
		if field == "duration" {
			return label + " must be a positive number in seconds"
		}
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "gte":
		return label + " must be non-negative (0 or greater)"
	default:
		return label + " is invalid"
	}
}
