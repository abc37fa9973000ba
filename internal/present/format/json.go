package format

import (
	"encoding/json"
	"io"

	"github.com/mithrel/agentipc/internal/command"
)

type jsonResponse struct {
	Type   command.ResponseType `json:"type"`
	Params map[string]string    `json:"params,omitempty"`
}

// WriteJSONResponse encodes resp as one JSON object. Without indent the
// output is a single line, suitable for NDJSON streams.
func WriteJSONResponse(w io.Writer, resp command.Response, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(jsonResponse{Type: resp.Type, Params: resp.Params})
}
