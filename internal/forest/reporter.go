package forest

// Reporter receives user-facing progress. The terminal front end styles it;
// the engine never writes to stdout directly.
type Reporter interface {
	// Repo announces that work on the repo at path is starting.
	Repo(path string)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	// Confirm asks a yes/no question. Non-interactive reporters answer false.
	Confirm(question string) bool
}

type nopReporter struct{}

func (nopReporter) Repo(string)          {}
func (nopReporter) Info(string, ...any)  {}
func (nopReporter) Warn(string, ...any)  {}
func (nopReporter) Error(string, ...any) {}
func (nopReporter) Confirm(string) bool  { return false }
