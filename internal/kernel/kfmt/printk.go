package kfmt

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink receives every klog line, grounded on printk.c's ring-buffer-backed
// system log. diag.Ring implements this to persist lines across a process
// restart; plain console output goes separately through this package's
// own logrus logger (see Logger).
type Sink interface {
	WriteLog(ts time.Time, line string)
}

var (
	mu    sync.RWMutex
	sinks []Sink
	log   = logrus.New()
)

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// AddSink registers a destination for klog output, e.g. diag's persistent
// ring buffer. Multiple sinks may be registered, mirroring printk.c's log
// simultaneously going to the system message ring and to any attached
// terminal.
func AddSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	sinks = append(sinks, s)
}

// Printk formats and dispatches a kernel log line -- printk()/printk_enable
// in the original. Equivalent to logrus.Infof plus fan-out to every
// registered Sink.
func Printk(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	now := time.Now()
	log.Info(line)
	mu.RLock()
	defer mu.RUnlock()
	for _, s := range sinks {
		s.WriteLog(now, line)
	}
}

// Logger returns the shared logrus instance for structured (WithField)
// logging elsewhere in the kernel.
func Logger() *logrus.Logger { return log }
