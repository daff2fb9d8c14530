package param

import "fmt"

// ConfigError reports a malformed range, label or tick configuration.
// Constructors return it; nothing is partially applied.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "param config: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownLabelError is returned when a label has no tick in the range.
type UnknownLabelError struct {
	Symbol string
	Label  string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("param %q: unknown label %q", e.Symbol, e.Label)
}

// EncodingError reports a logarithmic conversion whose intermediate
// argument is not positive.
type EncodingError struct {
	Symbol string
	Arg    float64
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("param %q: log10 of non-positive argument %g", e.Symbol, e.Arg)
}
