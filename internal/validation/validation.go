package validation

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateDate checks a field is a valid date (YYYY-MM-DD).
func ValidateDate(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	_, err := time.Parse("2006-01-02", value)
	if err != nil {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
	}
}

// ValidatePositiveInt checks a field is > 0.
func ValidatePositiveInt(ve *ValidationErrors, field string, value int) {
	if value <= 0 {
		ve.Add(field, "must be a positive integer")
	}
}

// ValidateNonNegativeInt checks a field is >= 0.
func ValidateNonNegativeInt(ve *ValidationErrors, field string, value int) {
	if value < 0 {
		ve.Add(field, "must be non-negative")
	}
}

// MaxQuantity bounds any single stock movement.
const MaxQuantity = 1000000

// ValidateMaxQuantity checks quantity doesn't exceed reasonable maximum.
func ValidateMaxQuantity(ve *ValidationErrors, field string, value int) {
	if value > MaxQuantity {
		ve.Add(field, fmt.Sprintf("exceeds maximum allowed quantity of %d", MaxQuantity))
	}
}

// ValidateEmail checks a field is a valid email (if non-empty).
func ValidateEmail(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	_, err := mail.ParseAddress(value)
	if err != nil {
		ve.Add(field, "must be a valid email address")
	}
}

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

var mobileRe = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,19}$`)

// ValidateMobile checks a phone number is plausible (if non-empty).
func ValidateMobile(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if !mobileRe.MatchString(value) {
		ve.Add(field, "must be a valid phone number")
	}
}

var dotRe = regexp.MustCompile(`^[0-9]{4}$`)

// ValidateDotCode checks a DOT production code is WWYY.
func ValidateDotCode(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if !dotRe.MatchString(value) {
		ve.Add(field, "must be a 4-digit DOT code (WWYY)")
	}
}

// File upload limits for driver documents.
const (
	MaxFileSize = 10 * 1024 * 1024
	MinFileSize = 1
)

// AllowedDocExtensions is the whitelist for uploaded driver documents.
var AllowedDocExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".webp",
}

// ValidateFileUpload validates an uploaded document's size and name.
func ValidateFileUpload(ve *ValidationErrors, field, filename string, size int64) {
	if size < MinFileSize {
		ve.Add(field, "cannot be empty")
		return
	}
	if size > MaxFileSize {
		ve.Add(field, fmt.Sprintf("exceeds maximum size of %d MB", MaxFileSize/(1024*1024)))
		return
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		ve.Add(field, "has an invalid filename")
		return
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AllowedDocExtensions {
		if ext == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(AllowedDocExtensions, ", ")))
}

// SanitizeFilename strips path separators and parent references.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
