package head

import (
	"fmt"

	"github.com/golang/glog"
)

// Display shows timing results to riders.
type Display interface {
	// ShowResult shows a fixed value, held for holdMs before the
	// display returns to the running time.
	ShowResult(ms, holdMs uint32)
	// ResetRunning restarts the running time from startMs.
	ResetRunning(startMs uint32)
}

// LogDisplay writes display updates to the log.
type LogDisplay struct{}

// ShowResult implements Display.
func (LogDisplay) ShowResult(ms, holdMs uint32) {
	glog.Infof("display: %s (hold %dms)", FormatMs(ms), holdMs)
}

// ResetRunning implements Display.
func (LogDisplay) ResetRunning(startMs uint32) {
	glog.V(2).Infof("display: running since %dms", startMs)
}

// FormatMs renders a duration as m:ss.mmm, minutes omitted when zero.
func FormatMs(ms uint32) string {
	min, sec, frac := ms/60000, ms/1000%60, ms%1000
	if min == 0 {
		return fmt.Sprintf("%d.%03d", sec, frac)
	}
	return fmt.Sprintf("%d:%02d.%03d", min, sec, frac)
}
