package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	CopyError       = 4
	FinalizeError   = 5
	ServeError      = 6
	AnalyzeError    = 7
)
