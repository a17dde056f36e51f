package handlers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/tutordesk/backend/internal/middleware"
	"github.com/tutordesk/backend/internal/scheduling"
	"go.uber.org/zap"
)

const maxUploadSizeBytes = 10 * 1024 * 1024

var (
	errBadBody      = errors.New("invalid request body")
	errUnauthorized = errors.New("unauthorized")
	validate        = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return v
}

// bindAndValidate parses a JSON or multipart body into req and runs its validate tags.
func bindAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errBadBody
	}
	return validate.Struct(req)
}

func respondInvalidBody(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			fields[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": fields,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fieldErr.Param()
	case "gt", "gte", "min":
		return "must be at least " + fieldErr.Param()
	case "lt", "lte", "max":
		return "must be at most " + fieldErr.Param()
	default:
		return "is invalid"
	}
}

func currentSession(c *fiber.Ctx) (*middleware.Session, error) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		return nil, errUnauthorized
	}
	return session, nil
}

func respondUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIDQuery(c *fiber.Ctx, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseTimestamp accepts RFC3339 or a bare YYYY-MM-DD date, read as midnight in loc.
func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return parsed, nil
}

// optionalUpload opens the named multipart file if one was sent.
func optionalUpload(c *fiber.Ctx, field string) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, "", nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "", fmt.Errorf("read multipart form: %w", err)
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, "", nil
	}

	fileHeader := headers[0]
	if fileHeader.Size <= 0 {
		return nil, "", fmt.Errorf("%s file is empty", field)
	}
	if fileHeader.Size > maxUploadSizeBytes {
		return nil, "", fmt.Errorf("%s file exceeds 10MB limit", field)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	return file, fileHeader.Filename, nil
}

func respondSlotConflict(c *fiber.Ctx, conflict *scheduling.SlotConflict) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"error":    "Requested time is not available",
		"conflict": conflict,
	})
}

func respondInternal(c *fiber.Ctx, message string, err error) error {
	zap.L().Error(message,
		zap.String("request_id", middleware.RequestIDFrom(c)),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}
