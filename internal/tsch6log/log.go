// Package tsch6log defines the logging function type threaded through every
// component constructor, mirroring the LogPrintf convention used throughout
// github.com/tve/devices.
package tsch6log

// Printf is the signature used by every component to emit informational and
// error events. Callers pass nil to disable logging.
type Printf func(format string, v ...interface{})

// Nop is a Printf that discards everything; used as the default when a
// constructor receives nil.
func Nop(format string, v ...interface{}) {}

// Or returns p if non-nil, else Nop.
func Or(p Printf) Printf {
	if p != nil {
		return p
	}
	return Nop
}

// Tagged wraps p so every message is prefixed with a component tag, matching
// the "component tag and up to two 16-bit parameters" convention from the
// debug surface.
func Tagged(p Printf, component string) Printf {
	p = Or(p)
	return func(format string, v ...interface{}) {
		p(component+": "+format, v...)
	}
}
