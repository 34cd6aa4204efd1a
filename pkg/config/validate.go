package config

import "fmt"

// ValidatableConfig is implemented by every configuration section.
type ValidatableConfig interface {
	Validate() []error
}

// Validate collects the errors of all cfgs in order.
func Validate(cfgs ...ValidatableConfig) []error {
	var out []error
	for _, cfg := range cfgs {
		out = append(out, cfg.Validate()...)
	}
	return out
}

type validator struct {
	errs []error
}

func (v *validator) check(cond bool, format string, a ...interface{}) {
	if !cond {
		v.errs = append(v.errs, fmt.Errorf(format, a...))
	}
}

func nonNegative[T ~int | ~int64](v *validator, flag string, val T) {
	v.check(val >= 0, "'--%s' must not be negative", flag)
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%d not in [1, 65535]", port)
	}
	return nil
}
