package app

import (
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/kart-io/legalstudy/internal/bootstrap"
)

// Keys of a subsystem section consumed here. Everything else is handed to
// the subsystem as its configuration.
const (
	keyKind         = "kind"
	keyEnabled      = "enabled"
	keyDependencies = "dependencies"
)

// Section is one enabled subsystem from the configuration.
type Section struct {
	Name         string
	Kind         string
	Dependencies []string
	Config       bootstrap.Config
}

// ParseSections turns the subsystems map into sections in registration
// order: names listed in order first, then the rest sorted. Disabled
// sections are dropped. Section names arrive lower-cased from viper.
func ParseSections(raw map[string]map[string]any, order []string) ([]Section, error) {
	byName := make(map[string]Section, len(raw))
	for name, sec := range raw {
		cfg := bootstrap.Config(maps.Clone(sec))
		if cfg == nil {
			cfg = bootstrap.Config{}
		}

		if cfg.Has(keyEnabled) && !cast.ToBool(cfg[keyEnabled]) {
			continue
		}
		kind := strings.TrimSpace(cfg.String(keyKind))
		if kind == "" {
			return nil, bootstrap.ErrConfiguration.WithMessagef("subsystems.%s: kind is required", name)
		}
		deps := dependencyList(cfg[keyDependencies])

		delete(cfg, keyKind)
		delete(cfg, keyEnabled)
		delete(cfg, keyDependencies)

		byName[name] = Section{Name: name, Kind: kind, Dependencies: deps, Config: cfg}
	}

	out := make([]Section, 0, len(byName))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			return nil, bootstrap.ErrConfiguration.WithMessagef("bootstrap.order: %q listed twice", name)
		}
		seen[name] = true
		if _, configured := raw[name]; !configured {
			return nil, bootstrap.ErrConfiguration.WithMessagef("bootstrap.order: unknown subsystem %q", name)
		}
		if s, ok := byName[name]; ok {
			out = append(out, s)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		if !seen[name] {
			out = append(out, byName[name])
		}
	}
	return out, nil
}

// dependencyList accepts a YAML list or a comma separated string.
func dependencyList(v any) []string {
	var items []string
	if s, ok := v.(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = cast.ToStringSlice(v)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.ToLower(strings.TrimSpace(it)); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// topology identifies the registered set: names, kinds and dependencies.
// Configuration-only changes keep it stable.
func topology(sections []Section) string {
	var sb strings.Builder
	for _, s := range sections {
		sb.WriteString(s.Name)
		sb.WriteByte('=')
		sb.WriteString(s.Kind)
		sb.WriteByte('[')
		sb.WriteString(strings.Join(s.Dependencies, ","))
		sb.WriteString("];")
	}
	return sb.String()
}
