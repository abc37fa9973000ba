package present

import (
	"io"

	"github.com/mithrel/agentipc/internal/command"
	"github.com/mithrel/agentipc/internal/present/format"
)

type Mode int

const (
	ModePlain Mode = iota
	ModeJSON
	ModeNDJSON
)

type Options struct {
	Mode       Mode
	JSONIndent bool
	Headers    bool
}

// ParseMode parses "plain" (or "text"), "json" and "ndjson".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "plain", "text", "":
		return ModePlain, true
	case "json":
		return ModeJSON, true
	case "ndjson":
		return ModeNDJSON, true
	default:
		return ModePlain, false
	}
}

// RenderResponse writes one response according to opts.
func RenderResponse(w io.Writer, resp command.Response, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSONResponse(w, resp, opts.JSONIndent)
	case ModeNDJSON:
		return format.WriteJSONResponse(w, resp, false)
	default:
		return format.WritePlainResponse(w, resp, opts.Headers)
	}
}
