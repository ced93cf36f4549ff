package secret

import "errors"

var (
	// ErrMissingEnv is returned when a ${VAR} reference names an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrProviderNotRegistered is returned for a secretref naming an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrNotFound is returned by providers when a reference has no value.
	ErrNotFound = errors.New("secret: not found")

	// ErrEmptyValue is returned by strict resolvers when a provider yields "".
	ErrEmptyValue = errors.New("secret: provider returned empty value")
)
