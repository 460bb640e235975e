package breakpad

import "errors"

// Fatal parse errors: these abort LoadFromReader, leaving the Module
// only partially populated; Resolver.LoadModule does not install it.
var (
	ErrOrphanLine        = errors.New("breakpad: blank line or unrecognized top-level record")
	ErrNoCurrentFunction = errors.New("breakpad: LINE record with no current FUNC")
	ErrInvalidLine       = errors.New("breakpad: LINE record has a non-positive line number or unparsable field")
	ErrMalformedRecord   = errors.New("breakpad: malformed record")
)

// Resolver-level errors.
var (
	ErrModuleExists   = errors.New("breakpad: module already loaded")
	ErrModuleNotFound = errors.New("breakpad: module not found")
)
