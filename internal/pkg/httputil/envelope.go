package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/batch-email/internal/pkg/logger"
)

// Response is the envelope returned by the event handlers. Body holds the
// JSON encoding of the payload ("null" when there is none).
type Response struct {
	StatusCode int               `json:"StatusCode"`
	Message    string            `json:"Message"`
	Header     map[string]string `json:"Header"`
	Body       string            `json:"Body"`
}

// NewResponse builds an envelope with a JSON content type. A body that cannot
// be encoded is logged and replaced by "null".
func NewResponse(status int, message string, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Error("httputil: encoding response body", "status", status, "error", err)
		data = []byte("null")
	}
	return Response{
		StatusCode: status,
		Message:    message,
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

// WriteResponse writes the envelope over HTTP. A 204 carries no body.
func WriteResponse(w http.ResponseWriter, resp Response) {
	if resp.StatusCode == http.StatusNoContent {
		NoContent(w)
		return
	}
	JSON(w, resp.StatusCode, resp)
}
