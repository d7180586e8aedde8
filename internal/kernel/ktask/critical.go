package ktask

import "sync"

// criticalMu serializes the critical-section and ISR-disable primitives.
// On real hardware these suspend the scheduler or mask interrupts; the
// hosted equivalent is a single global mutex, since Go has no interrupt
// context to mask and the only thing callers actually need is "nobody else
// runs this block concurrently."
var criticalMu sync.Mutex

// CriticalSectionBegin/End bracket a region that must run without
// preemption -- _critical_section_begin/_critical_section_end.
func CriticalSectionBegin() { criticalMu.Lock() }
func CriticalSectionEnd()   { criticalMu.Unlock() }

// ISRDisable/ISREnable mirror _ISR_disable/_ISR_enable. This hosted build
// has no interrupt context distinct from critical sections, so both pairs
// share the same lock; kept as separate named functions so call sites that
// mirror the original's ISR-masking intent stay self-documenting.
func ISRDisable() { criticalMu.Lock() }
func ISREnable()  { criticalMu.Unlock() }
