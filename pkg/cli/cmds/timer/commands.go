package timer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/laptimer/pkg/cli/sh"
	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/companion"
	"github.com/robotalks/laptimer/pkg/devices"
	"github.com/robotalks/laptimer/pkg/laps"
	"github.com/robotalks/laptimer/pkg/msgs"
)

// ScanTimeout covers a full detected device scan.
const ScanTimeout = 10 * time.Second

// DefaultWatchDuration is how long watch prints events without argument.
const DefaultWatchDuration = 10 * time.Second

type call func(context.Context, *companion.Client) (interface{}, error)

func simple(fn call) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		sh.Call(c, fn)
	})
}

var (
	// IdentifyCmd exposes GetIdentification.
	IdentifyCmd = ishell.Cmd{
		Name:    "id",
		Aliases: []string{"identify"},
		Help:    "",
		Func: simple(func(ctx context.Context, client *companion.Client) (interface{}, error) {
			id, err := client.Identify(ctx)
			if err != nil {
				return nil, err
			}
			return FormatIdentification(id), nil
		}),
	}

	// TimeCmd exposes GetCurrentTime.
	TimeCmd = ishell.Cmd{
		Name: "time",
		Help: "",
		Func: simple(func(ctx context.Context, client *companion.Client) (interface{}, error) {
			v, err := client.CurrentTime(ctx)
			if err != nil {
				return nil, err
			}
			return FormatTime(v), nil
		}),
	}

	// LatestCmd exposes GetLatestTimestamp.
	LatestCmd = ishell.Cmd{
		Name: "latest",
		Help: "",
		Func: simple(func(ctx context.Context, client *companion.Client) (interface{}, error) {
			v, err := client.Latest(ctx)
			if companion.IsNotFound(err) {
				return "no timestamp recorded", nil
			}
			if err != nil {
				return nil, err
			}
			return FormatTime(v), nil
		}),
	}

	// LapsCmd exposes GetAllLaps.
	LapsCmd = ishell.Cmd{
		Name:    "laps",
		Aliases: []string{"l"},
		Help:    "",
		Func: simple(func(ctx context.Context, client *companion.Client) (interface{}, error) {
			entries, err := client.Laps(ctx)
			if err != nil {
				return nil, err
			}
			lines := make([]string, 0, len(entries))
			for _, e := range entries {
				lines = append(lines, FormatLap(e))
			}
			return lines, nil
		}),
	}

	// ModeCmd exposes UpdateOperationMode.
	ModeCmd = ishell.Cmd{
		Name: "mode",
		Help: "laptimer|collector|singlerun|multirun",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("mode expected"))
				return
			}
			mode, err := laps.ParseOperationMode(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Call(c, func(ctx context.Context, client *companion.Client) (interface{}, error) {
				return nil, client.SetMode(ctx, mode)
			})
		}),
	}

	// DisplayCmd exposes UpdateDisplayedTime.
	DisplayCmd = ishell.Cmd{
		Name: "display",
		Help: "MILLISECONDS",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("milliseconds expected"))
				return
			}
			ms, err := strconv.ParseUint(c.Args[0], 10, 32)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Call(c, func(ctx context.Context, client *companion.Client) (interface{}, error) {
				return nil, client.Display(ctx, uint32(ms))
			})
		}),
	}

	// AllowCmd exposes AddAllowedDevice.
	AllowCmd = ishell.Cmd{
		Name: "allow",
		Help: "ADDRESS [CORRECTION]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			e, err := ParseAllowedEntry(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Call(c, func(ctx context.Context, client *companion.Client) (interface{}, error) {
				return nil, client.Allow(ctx, e)
			})
		}),
	}

	// DisallowCmd exposes RemoveAllowedDevice.
	DisallowCmd = ishell.Cmd{
		Name: "disallow",
		Help: "ADDRESS",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("address expected"))
				return
			}
			addr, err := devices.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Call(c, func(ctx context.Context, client *companion.Client) (interface{}, error) {
				return nil, client.Disallow(ctx, addr)
			})
		}),
	}

	// AllowedCmd exposes ListAllowedDevices.
	AllowedCmd = ishell.Cmd{
		Name: "allowed",
		Help: "",
		Func: simple(func(ctx context.Context, client *companion.Client) (interface{}, error) {
			list, err := client.Allowed(ctx)
			if err != nil {
				return nil, err
			}
			return formatDevices(list), nil
		}),
	}

	// DetectCmd exposes ListDetectedDevices.
	DetectCmd = ishell.Cmd{
		Name: "detect",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			done := make(chan struct{})
			defer close(done)
			go func() {
				for {
					select {
					case <-done:
						return
					case f := <-s.Conn.Client.EventChan():
						if p, err := msgs.DecodeProgress(f.Data); err == nil && f.Status == msgs.StatusProgress && !s.OutputJSON {
							c.Printf("scanning %d%%, %d devices\n", p.Percent, p.Count)
						}
					}
				}
			}()
			sh.CallWithin(c, ScanTimeout, func(ctx context.Context, client *companion.Client) (interface{}, error) {
				list, err := client.Detect(ctx)
				if err != nil {
					return nil, err
				}
				return formatDevices(list), nil
			})
		}),
	}

	// ClosestCmd exposes GetClosestDevice.
	ClosestCmd = ishell.Cmd{
		Name: "closest",
		Help: "",
		Func: simple(func(ctx context.Context, client *companion.Client) (interface{}, error) {
			d, err := client.Closest(ctx)
			if companion.IsNotFound(err) {
				return "no device in range", nil
			}
			if err != nil {
				return nil, err
			}
			return FormatDevice(d), nil
		}),
	}

	// WatchCmd prints pushes from the head.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[SECONDS]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			duration := DefaultWatchDuration
			if len(c.Args) > 0 {
				sec, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				duration = time.Duration(sec) * time.Second
			}
			s := sh.ShellFrom(c)
			timer := time.NewTimer(duration)
			defer timer.Stop()
			for {
				select {
				case <-timer.C:
					return
				case <-s.Conn.Ctx.Done():
					return
				case f := <-s.Conn.Client.EventChan():
					s.Print(c, FormatEvent(f))
				}
			}
		}),
	}
)

// FormatIdentification renders an identification response.
func FormatIdentification(id msgs.Identification) string {
	var types []string
	for _, t := range []struct {
		bit  msgs.DeviceType
		name string
	}{
		{msgs.DeviceTimer, "timer"},
		{msgs.DeviceIdentifier, "identifier"},
		{msgs.DeviceDisplay, "display"},
		{msgs.DeviceStartRelease, "start-release"},
	} {
		if id.Types.Has(t.bit) {
			types = append(types, t.name)
		}
	}
	return fmt.Sprintf("%x types=%v mode=%s sensors=%s", id.UniqueID, types,
		laps.OperationMode(id.OperationMode), laps.SensorMode(id.SensorMode))
}

// FormatTime renders a time value.
func FormatTime(v msgs.TimeValue) string {
	if v.Kind == msgs.TimeNone {
		return fmt.Sprintf("%dms", v.Value)
	}
	return fmt.Sprintf("%dms (%s)", v.Value, v.Kind)
}

// FormatLap renders a lap entry, open laps have no duration.
func FormatLap(e msgs.LapEntry) string {
	l := laps.Lap{Start: e.Start, End: e.End}
	return fmt.Sprintf("#%02d %s", e.Index, l)
}

// FormatDevice renders a device entry.
func FormatDevice(d devices.Device) string {
	return fmt.Sprintf("%s rssi=%d power=%d loss=%d", d.Address, d.RSSI, d.MeasuredPower, d.PathLoss())
}

func formatDevices(list []devices.Device) []string {
	lines := make([]string, 0, len(list))
	for _, d := range list {
		lines = append(lines, FormatDevice(d))
	}
	return lines
}

// FormatEvent renders an unsolicited frame.
func FormatEvent(f *comm.Frame) string {
	switch f.Type {
	case comm.CmdGetCurrentTime, comm.CmdGetLatestTimestamp:
		if v, err := msgs.DecodeTimeValue(f.Data); err == nil {
			return fmt.Sprintf("%s %s", f.Type, FormatTime(v))
		}
	case comm.CmdGetClosestDevice:
		if d, err := devices.DecodeDevice(f.Data); err == nil {
			return fmt.Sprintf("%s %s", f.Type, FormatDevice(d))
		}
	}
	return f.String()
}

// ParseAllowedEntry parses ADDRESS [CORRECTION].
func ParseAllowedEntry(args []string) (e devices.AllowedEntry, err error) {
	if len(args) < 1 || len(args) > 2 {
		return e, fmt.Errorf("ADDRESS [CORRECTION] expected")
	}
	if e.Address, err = devices.ParseAddress(args[0]); err != nil {
		return
	}
	if len(args) > 1 {
		var corr int64
		if corr, err = strconv.ParseInt(args[1], 10, 8); err != nil {
			return
		}
		e.Correction = int8(corr)
	}
	return
}

func init() {
	sh.AddCmds(
		&IdentifyCmd,
		&TimeCmd,
		&LatestCmd,
		&LapsCmd,
		&ModeCmd,
		&DisplayCmd,
		&AllowCmd,
		&DisallowCmd,
		&AllowedCmd,
		&DetectCmd,
		&ClosestCmd,
		&WatchCmd,
	)
}
