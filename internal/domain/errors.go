package domain

import "fmt"

// ConfigurationError marks a comparison request that cannot be answered
// without guessing field semantics. It is fatal to the single request;
// silently assuming a definition would corrupt the apples-to-apples
// guarantee, so the error surfaces before any aggregate is produced.
type ConfigurationError struct {
	Source string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("comparison config for %s.%s: %s", e.Source, e.Field, e.Reason)
}
