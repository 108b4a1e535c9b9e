// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"docflow/internal/core/apperror"
	appctx "docflow/internal/core/context"
	"docflow/internal/core/id"
	"docflow/internal/infrastructure/http/v1/dto"
	"docflow/internal/infrastructure/http/v1/middleware"
)

const contentTypeJSON = "application/json; charset=utf-8"

var registerTagNames sync.Once

// UseJSONFieldNames makes validation errors report json field names
// instead of Go struct field names.
func UseJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	UseJSONFieldNames()
	return &BaseHandler{}
}

// BindJSON binds and validates the JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.HandleError(c, bindError("invalid request body", err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.HandleError(c, bindError("invalid query parameters", err))
		return false
	}
	return true
}

func bindError(msg string, err error) error {
	appErr := apperror.NewValidation(msg)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]dto.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, dto.FieldError{
				Field: fieldPath(fe),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
		return appErr.WithDetail("fields", fields)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return appErr.WithDetail("fields", []dto.FieldError{{Field: typeErr.Field, Rule: "type", Param: typeErr.Type.String()}})
	}
	var fieldErr *dto.FieldFormatError
	if errors.As(err, &fieldErr) {
		return appErr.WithDetail("fields", []dto.FieldError{{Field: fieldErr.Field, Rule: "format"}})
	}
	return appErr.WithDetail("error", err.Error())
}

// fieldPath drops the top-level struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// HandleError registers the error on the gin context and aborts the request.
// middleware.ErrorHandler renders the response.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var fieldErr *dto.FieldFormatError
	if errors.As(err, &fieldErr) {
		err = apperror.NewValidation("invalid "+fieldErr.Field).
			WithDetail("fields", []dto.FieldError{{Field: fieldErr.Field, Rule: "format"}})
	}
	_ = c.Error(err)
	c.Abort()
}

// ParseID reads a uuid path parameter.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(param))
	if err != nil {
		h.HandleError(c, apperror.NewValidation("invalid "+param+" format").WithDetail("field", param))
		return id.ID{}, false
	}
	return parsed, true
}

// ParseDocumentID reads the :id parameter of a /documents route and scopes
// the request context, and so its log lines, to that document.
func (h *BaseHandler) ParseDocumentID(c *gin.Context) (id.ID, bool) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return docID, false
	}
	c.Request = c.Request.WithContext(appctx.WithDocument(c.Request.Context(), docID.String()))
	return docID, true
}

// ParseIntQuery parses an integer query parameter with a default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// OK sends 200 with data in the success envelope.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// Created sends 201 with data in the success envelope.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// respond marshals once so that the stored idempotent replay is byte-identical
// to what the client received.
func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	body, err := json.Marshal(dto.NewResponse(data))
	if err != nil {
		h.HandleError(c, apperror.NewInternal(err).WithDetail("op", "encode response"))
		return
	}
	middleware.CompleteIdempotency(c, status, contentTypeJSON, body)
	c.Data(status, contentTypeJSON, body)
}
