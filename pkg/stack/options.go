package stack

import "sort"

// mergeOptions records each option from src into dst. An option not yet
// present is recorded; an option already present with the same value is
// accepted silently; a different value is a contradiction between two
// composers and fails with a ConsistencyError.
func mergeOptions(subject string, dst map[string]string, src map[string]string) error {
	for option, value := range src {
		have, ok := dst[option]
		if !ok {
			dst[option] = value
			continue
		}
		if have != value {
			return optionConflictError(subject, option, have, value)
		}
	}
	return nil
}

// sortedOptionKeys returns the option names in sorted order so rendered
// configuration files are deterministic.
func sortedOptionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
