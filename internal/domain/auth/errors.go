package auth

import "errors"

// ErrUnknownRole indicates a token carried a role this service does not serve.
var ErrUnknownRole = errors.New("unknown role")
