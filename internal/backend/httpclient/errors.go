package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// StatusError carries the HTTP status of a failed call. It unwraps to the
// model sentinel chosen by classify.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	Kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %v: %s", e.Op, e.StatusCode, e.Kind, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// classify maps a resty outcome onto the model error taxonomy. notFound is the
// sentinel used for 404: reads treat a missing id as a validation failure,
// mutations as ErrNotFound.
func classify(op string, resp *resty.Response, err error, notFound error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s network error: %w: %v", op, model.ErrTransient, err)
	}
	if !resp.IsError() {
		return nil
	}
	var kind error
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = model.ErrUnauthorized
	case code == http.StatusNotFound:
		kind = notFound
	case code == http.StatusConflict:
		kind = model.ErrConflict
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		kind = model.ErrTransient
	case code >= 400 && code < 500:
		kind = model.ErrValidation
	default:
		kind = model.ErrTransient
	}
	body := resp.String()
	if e, ok := resp.Error().(*model.ErrorResponse); ok {
		switch {
		case e.Message != "":
			body = e.Message
		case e.Error != "":
			body = e.Error
		}
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode(), Body: body, Kind: kind}
}
