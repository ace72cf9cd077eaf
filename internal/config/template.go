package config

import (
	"fmt"
	"strings"
)

// Template renders an example YAML configuration listing every option with
// its documentation, default value and environment variable.
func Template(namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	var b strings.Builder
	for i, entry := range templateSections {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%q:\n", entry.name)
		for _, opt := range optionsOf(entry.section) {
			if opt.Doc != "" {
				fmt.Fprintf(&b, "  # %s\n", opt.Doc)
			}
			fmt.Fprintf(&b, "  # env: %s\n", EnvName(namespace, entry.name, opt.Key))
			fmt.Fprintf(&b, "  %s: %q\n", opt.Key, opt.Default)
		}
	}
	return b.String()
}
