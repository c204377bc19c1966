package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/chat"
	"github.com/lexicon-labs/lexicon-cli/internal/output"
)

func validateErrorFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "auto", "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("invalid --error-format %q (expected auto|text|json|yaml)", format)
	}
}

func effectiveErrorFormat(ctx context.Context) string {
	format := strings.ToLower(strings.TrimSpace(ErrorFormatFromContext(ctx)))
	if format == "" || format == "auto" {
		switch output.FormatFromContext(ctx) {
		case output.FormatJSON, output.FormatNDJSON:
			return "json"
		case output.FormatYAML:
			return "yaml"
		default:
			return "text"
		}
	}
	return format
}

func printCommandError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch effectiveErrorFormat(ctx) {
	case "json":
		enc := json.NewEncoder(stderrFromContext(ctx))
		enc.SetEscapeHTML(false)
		_ = enc.Encode(buildErrorEnvelope(err))
		return
	case "yaml":
		enc := yaml.NewEncoder(stderrFromContext(ctx))
		enc.SetIndent(2)
		_ = enc.Encode(buildErrorEnvelope(err))
		_ = enc.Close()
		return
	}

	_, _ = fmt.Fprintln(stderrFromContext(ctx), err)
}

func buildErrorEnvelope(err error) map[string]interface{} {
	errMap := map[string]interface{}{
		"message":  err.Error(),
		"type":     "error",
		"category": "system",
	}

	var authErr api.AuthenticationError
	var validationErr api.ValidationError
	var fieldErrs validation.Errors
	var notFoundErr api.NotFoundError
	var rateErr api.RateLimitError
	var apiErr api.APIError

	switch {
	case errors.As(err, &authErr):
		errMap["type"] = "auth"
		errMap["category"] = "user"
	case errors.As(err, &validationErr), errors.As(err, &fieldErrs),
		errors.Is(err, chat.ErrEmptyMessage):
		errMap["type"] = "validation"
		errMap["category"] = "user"
	case errors.As(err, &notFoundErr):
		errMap["type"] = "not_found"
		errMap["category"] = "user"
	case errors.As(err, &rateErr):
		errMap["type"] = "rate_limit"
	case errors.As(err, &apiErr):
		errMap["type"] = "api"
		errMap["status"] = apiErr.StatusCode
		errMap["retryable"] = apiErr.Temporary()
	case errors.Is(err, context.DeadlineExceeded):
		errMap["type"] = "timeout"
	}

	return map[string]interface{}{"error": errMap}
}
