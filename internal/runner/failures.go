package runner

import (
	"fmt"
	"strings"
)

// FailureLog accumulates failed commands grouped by package, preserving
// first-failure order, for the keep-going summary.
type FailureLog struct {
	order []string
	byPkg map[string][]string
}

func (f *FailureLog) Record(pkg, command string) {
	if f.byPkg == nil {
		f.byPkg = make(map[string][]string)
	}
	if _, seen := f.byPkg[pkg]; !seen {
		f.order = append(f.order, pkg)
	}
	f.byPkg[pkg] = append(f.byPkg[pkg], command)
}

func (f *FailureLog) Empty() bool { return len(f.order) == 0 }

// Count returns the total number of failed commands.
func (f *FailureLog) Count() int {
	n := 0
	for _, cmds := range f.byPkg {
		n += len(cmds)
	}
	return n
}

// Commands returns the failed command lines recorded for one package.
func (f *FailureLog) Commands(pkg string) []string {
	return f.byPkg[pkg]
}

// Summary surfaces the aggregate outcome: nil when nothing failed, else a
// *SummaryError listing every failed command grouped by package.
func (f *FailureLog) Summary() error {
	if f.Empty() {
		return nil
	}
	return &SummaryError{log: f}
}

// SummaryError is the keep-going aggregate failure.
type SummaryError struct {
	log *FailureLog
}

func (e *SummaryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "runner: %d command(s) failed", e.log.Count())
	for _, pkg := range e.log.order {
		fmt.Fprintf(&b, "\n  %s:", pkg)
		for _, cmd := range e.log.byPkg[pkg] {
			fmt.Fprintf(&b, "\n    %s", cmd)
		}
	}
	return b.String()
}

// Packages lists the failing packages in first-failure order.
func (e *SummaryError) Packages() []string {
	return e.log.order
}
