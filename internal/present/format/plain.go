package format

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mithrel/agentipc/internal/command"
)

func esc(field string) string {
	field = strings.ReplaceAll(field, "\t", "\\t")
	field = strings.ReplaceAll(field, "\n", "\\n")
	return field
}

// WritePlainResponse prints the response type on the first line and one
// key=value line per parameter in key order. With headers the parameters
// are laid out as an aligned key/value table instead.
func WritePlainResponse(w io.Writer, resp command.Response, headers bool) error {
	if _, err := fmt.Fprintln(w, resp.Type); err != nil {
		return err
	}
	if !headers {
		for _, k := range resp.Keys() {
			if _, err := fmt.Fprintf(w, "%s=%s\n", esc(k), esc(resp.Params[k])); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = io.WriteString(tw, "key\tvalue\n")
	for _, k := range resp.Keys() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", esc(k), esc(resp.Params[k]))
	}
	return tw.Flush()
}
