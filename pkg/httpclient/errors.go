package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx reply from a collaborator.
type StatusError struct {
	Service string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned %d (%s): %s", e.Service, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.Status, e.Message)
}

// ClientError reports whether the collaborator rejected the request itself,
// as opposed to failing while handling it.
func (e *StatusError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// ParseResponseError drains and closes resp.Body and returns a StatusError.
// Bodies in the {"error":{"code","message"}} envelope keep their code.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned %d (read body: %w)", service, resp.StatusCode, err)
	}

	out := &StatusError{Service: service, Status: resp.StatusCode, Message: string(body)}
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		out.Code, out.Message = envelope.Error.Code, envelope.Error.Message
	}
	return out
}
