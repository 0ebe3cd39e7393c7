package index

import "fmt"

// ConfigurationError reports a structurally invalid index configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "index configuration: " + e.Reason
	}
	return fmt.Sprintf("index configuration: field %q %s", e.Field, e.Reason)
}
