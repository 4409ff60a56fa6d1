package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMarkers are the legacy hosts that identify hardcoded links.
var DefaultMarkers = []string{"steadiczech.com", "172.251.232.135"}

// Rules selects which link values count as legacy.
type Rules struct {
	Markers []string `json:"markers" yaml:"markers"`
}

// DefaultRules returns the built-in marker set.
func DefaultRules() Rules {
	return Rules{Markers: append([]string(nil), DefaultMarkers...)}
}

// LoadRules reads a YAML or JSON rules file. An empty path yields DefaultRules.
func LoadRules(path string) (Rules, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRules(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var rules Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &rules)
	default:
		err = yaml.Unmarshal(raw, &rules)
	}
	if err != nil {
		return Rules{}, fmt.Errorf("decode rules file: %w", err)
	}

	rules.Markers = sanitizeMarkers(rules.Markers)
	if len(rules.Markers) == 0 {
		return Rules{}, errors.New("rules file declares no markers")
	}
	return rules, nil
}

func sanitizeMarkers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Matches reports whether value contains any marker.
func (r Rules) Matches(value string) bool {
	for _, m := range r.Markers {
		if strings.Contains(value, m) {
			return true
		}
	}
	return false
}
