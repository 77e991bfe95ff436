package registry

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

// ParseProviderList parses the delimited provider configuration string.
//
// Entries are separated by ',', each entry is 'name:base_url' optionally followed
// by '|key=value' option segments. Recognized options: health, health_method,
// capabilities (empty value disables manifest polling), tools ('+'-joined names).
//
// Malformed entries (missing name or base URL) are skipped with a warning, never fatal.
func ParseProviderList(value string, logger hclog.Logger) []Descriptor {
	var out []Descriptor
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		d, ok := parseEntry(entry)
		if !ok {
			logger.Warn("Skipping invalid provider entry", "entry", entry)
			continue
		}
		out = append(out, d)
	}
	return out
}

func parseEntry(entry string) (Descriptor, bool) {
	var parts []string
	for _, p := range strings.Split(entry, "|") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Descriptor{}, false
	}

	name, baseURL, found := strings.Cut(parts[0], ":")
	if !found || strings.TrimSpace(name) == "" || strings.TrimSpace(baseURL) == "" {
		return Descriptor{}, false
	}

	d := Descriptor{Name: name, BaseURL: baseURL}
	for _, option := range parts[1:] {
		key, val, _ := strings.Cut(option, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "health", "health_path":
			if val != "" {
				d.HealthPath = val
			}
		case "health_method", "healthmethod":
			if val != "" {
				d.HealthMethod = val
			}
		case "capabilities", "capabilities_path":
			d.CapabilitiesPath = val
			d.DisableCapabilities = val == ""
		case "tools", "default_tools":
			d.DefaultTools = SplitTools(val)
		}
	}

	if !d.Normalize() {
		return Descriptor{}, false
	}
	return d, true
}

// SplitTools splits a '+'-joined tool list, dropping empty segments.
func SplitTools(value string) []string {
	var tools []string
	for _, tool := range strings.Split(value, "+") {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			tools = append(tools, tool)
		}
	}
	return tools
}
