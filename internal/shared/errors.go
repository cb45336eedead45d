package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrConfigExists    = fmt.Errorf("config file already exists")
	ErrMissingSecret   = fmt.Errorf("missing secret")
	ErrModuleDisabled  = fmt.Errorf("module disabled")
	ErrUnknownModule   = fmt.Errorf("unknown module")
	ErrModuleNotReady  = fmt.Errorf("module preparation failed")
	ErrNoProxies       = fmt.Errorf("no working proxies")
	ErrUnsupportedType = fmt.Errorf("unsupported proxy protocol")

	// Network errors
	ErrFetchFailed   = fmt.Errorf("page fetch failed")
	ErrBadStatus     = fmt.Errorf("unexpected response status")
	ErrUnknownMethod = fmt.Errorf("unknown http method")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// Parsing and matching errors
	ErrParseFailed    = fmt.Errorf("page parse failed")
	ErrNoMatch        = fmt.Errorf("no matching title")
	ErrUnknownAction  = fmt.Errorf("unknown action")
	ErrActionInactive = fmt.Errorf("action is not active")
	ErrNotSupported   = fmt.Errorf("operation not supported by site")
	ErrBadRecord      = fmt.Errorf("invalid title record")

	// Storage errors
	ErrBucketNotFound = fmt.Errorf("bucket not found")
	ErrKeyNotFound    = fmt.Errorf("key not found")
	ErrStoreSave      = fmt.Errorf("store save failed")
	ErrStoreIO        = fmt.Errorf("store I/O failed")
	ErrBadPath        = fmt.Errorf("invalid document path")
	ErrEmptyDump      = fmt.Errorf("titles dump is empty")

	// Task errors
	ErrTaskNotFound  = fmt.Errorf("task not found")
	ErrRunnerClosed  = fmt.Errorf("task runner closed")
	ErrAlreadyActive = fmt.Errorf("action already in progress")

	// Server errors
	ErrServerFailed = fmt.Errorf("http server failed")
	ErrNoHijack     = fmt.Errorf("connection cannot be hijacked")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
