package events

import "strings"

// Wildcard is the "any status" token in a transition hook pattern.
const Wildcard = "*"

// MatchTransitionHooks returns the commands configured for patterns
// matching the concrete (from, to) transition, in the defined
// precedence order: exact match, wildcard source, wildcard target,
// double wildcard. Within a category, the input map's insertion order
// is preserved via patternOrder (maps have no inherent order in Go, so
// callers must supply it alongside the map). Patterns are
// whitespace-tolerant around the arrow (spec.md §4.3).
//
// patterns maps a raw "from -> to" pattern string to its command;
// patternOrder lists those same keys in the order they should be
// considered within a precedence tier (typically config file order).
func MatchTransitionHooks(patterns map[string]string, patternOrder []string, from, to string) []string {
	if patterns == nil {
		return nil
	}

	tiers := [4]string{
		buildPattern(from, to),
		buildPattern(Wildcard, to),
		buildPattern(from, Wildcard),
		buildPattern(Wildcard, Wildcard),
	}

	var cmds []string
	seenKey := make(map[string]struct{})
	for _, tier := range tiers {
		for _, key := range patternOrder {
			if key != tier {
				continue
			}
			if _, dup := seenKey[key]; dup {
				continue
			}
			cmd, ok := patterns[key]
			if !ok {
				continue
			}
			seenKey[key] = struct{}{}
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// NormalizePattern trims whitespace around the arrow in a "from -> to"
// pattern so lookups are whitespace-tolerant.
func NormalizePattern(pattern string) string {
	parts := strings.SplitN(pattern, "->", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(pattern)
	}
	return buildPattern(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
}

func buildPattern(from, to string) string {
	return from + " -> " + to
}
