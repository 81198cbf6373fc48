// Package critsec provides the typed critical-section abstraction recommended
// for this design: a small wrapper around a mutex that brackets every
// read-modify-write sequence on state shared between the foreground task and
// the interrupt-context callbacks (newSlot/timerFire/startOfFrame/endOfFrame),
// instead of ad-hoc disable/enable calls scattered through the code.
package critsec

import "sync"

// Section guards a piece of shared state. The zero value is ready to use.
type Section struct {
	mu sync.Mutex
}

// Do runs fn with the section held, standing in for a disable-interrupts /
// enable-interrupts bracket around a read-modify-write.
func (s *Section) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
