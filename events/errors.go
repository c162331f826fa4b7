package events

import (
	"net/http"

	"github.com/goliatone/go-access/core"
	goerrors "github.com/goliatone/go-errors"
)

func eventError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func eventWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return eventError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func eventBadInput(message string, metadata map[string]any) error {
	return eventError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.AccessErrorBadInput,
		metadata,
	)
}

func eventInternal(message string, metadata map[string]any) error {
	return eventError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.AccessErrorInternal,
		metadata,
	)
}
