package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxContentLength is the longest accepted message body, in characters.
const MaxContentLength = 1000

var validate = validator.New()

// NormalizeContent trims a message body and enforces the length policy.
func NormalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if err := validate.Var(content, "required,max=1000"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return "", validationError("message cannot exceed 1000 characters")
		}
		return "", validationError("message content is required")
	}
	return content, nil
}
