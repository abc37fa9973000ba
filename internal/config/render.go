package config

import (
	"fmt"
	"strings"
)

// RenderDefaultProperties renders an ipc.properties file with defaults from
// GetConfigOptions.
func RenderDefaultProperties() string {
	var b strings.Builder
	b.WriteString("# agentipc configuration (properties)\n\n")
	for _, o := range GetConfigOptions() {
		writeOption(&b, o)
	}
	return b.String()
}

// UpdateProperties merges defaults into an existing properties file and
// comments out unknown keys.
func UpdateProperties(existing string) (string, bool) {
	lines := strings.Split(existing, "\n")
	opts := GetConfigOptions()

	known := make(map[string]ConfigOption, len(opts))
	for _, o := range opts {
		known[o.Key] = o
	}

	existingKeys := make(map[string]bool)
	out := make([]string, 0, len(lines))
	changed := false
	continued := false

	for _, line := range lines {
		trim := strings.TrimSpace(line)
		// continuation lines belong to the previous key
		if continued {
			continued = strings.HasSuffix(trim, `\`)
			out = append(out, line)
			continue
		}
		if trim == "" || strings.HasPrefix(trim, "#") || strings.HasPrefix(trim, "!") {
			out = append(out, line)
			continue
		}
		continued = strings.HasSuffix(trim, `\`)
		key, ok := parsePropertyKey(trim)
		if !ok {
			out = append(out, line)
			continue
		}
		existingKeys[key] = true
		if _, ok := known[key]; !ok {
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			out = append(out, indent+"# OUTDATED: option removed from config schema")
			out = append(out, indent+"# "+strings.TrimLeft(line, " \t"))
			changed = true
			continue
		}
		out = append(out, line)
	}

	var missing []ConfigOption
	for _, o := range opts {
		if !existingKeys[o.Key] {
			missing = append(missing, o)
		}
	}
	if len(missing) > 0 {
		var b strings.Builder
		for _, o := range missing {
			writeOption(&b, o)
		}
		out = append(out, "", "# Added by config update")
		out = append(out, strings.Split(strings.TrimRight(b.String(), "\n"), "\n")...)
		out = append(out, "")
		changed = true
	}

	return strings.Join(out, "\n"), changed
}

// parsePropertyKey returns the key of a key=value, key:value or
// "key value" line.
func parsePropertyKey(line string) (string, bool) {
	end := strings.IndexAny(line, "=: \t")
	if end == -1 {
		end = len(line)
	}
	key := strings.TrimSpace(line[:end])
	if key == "" {
		return "", false
	}
	return key, true
}

func writeOption(b *strings.Builder, o ConfigOption) {
	if o.Comment != "" {
		b.WriteString("# " + o.Comment + "\n")
	}
	b.WriteString(fmt.Sprintf("%s = %s\n\n", o.Key, escapeValue(fmt.Sprint(o.Default))))
}

// escapeValue escapes backslashes, which introduce escapes in properties files.
func escapeValue(s string) string {
	return strings.ReplaceAll(s, `\`, `\\`)
}
