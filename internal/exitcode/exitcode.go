package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2 // malformed input, missing or invalid code tables
	DBConnError     = 3
	ResolveError    = 4 // unknown codes under fail, emptied cases under ignore
	PredictError    = 5
	WriteError      = 6
	SinkError       = 7
	Interrupted     = 130
)
