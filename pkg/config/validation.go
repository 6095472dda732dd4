package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

var validate = validator.New()

// Validate checks a configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.InvalidConfiguration, "config is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			return errors.WithFields(
				errors.New(errors.InvalidConfiguration, describeValidationErrors(verrs)),
				errors.Fields{"fields": fieldNames(verrs)})
		}
		return errors.Wrap(err, errors.InvalidConfiguration, "config validation failed")
	}

	if cfg.Cache.Backend == "sqlite" && cfg.Cache.Path == "" {
		return errors.New(errors.InvalidConfiguration, "cache.path is required for the sqlite backend")
	}
	if cfg.Oracle.Provider == "ollama" && !strings.HasPrefix(cfg.Oracle.ModelID, "ollama:") {
		return errors.New(errors.InvalidConfiguration, "ollama model IDs must use the 'ollama:<model_name>' form")
	}

	return nil
}

func describeValidationErrors(verrs validator.ValidationErrors) string {
	var messages []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", fe.Namespace(), fe.Param()))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", fe.Namespace()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}
	return "config validation failed: " + strings.Join(messages, "; ")
}

func fieldNames(verrs validator.ValidationErrors) []string {
	names := make([]string, len(verrs))
	for i, fe := range verrs {
		names[i] = fe.Namespace()
	}
	return names
}
