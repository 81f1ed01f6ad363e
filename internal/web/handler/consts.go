package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the root path inside a route group.
	RouterRootPath = "/"

	// ErrNilACDFatalLogMsg is used if app or cfg or coordinator var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or coordinator is nil"
)
