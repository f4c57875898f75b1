package companion

import (
	"context"

	"github.com/robotalks/laptimer/pkg/devices"
	"github.com/robotalks/laptimer/pkg/dispatch"
	"github.com/robotalks/laptimer/pkg/laps"
	"github.com/robotalks/laptimer/pkg/msgs"
)

// Identify requests the identification of the head.
func (c *Client) Identify(ctx context.Context) (msgs.Identification, error) {
	r := c.Call(ctx, dispatch.GetIdentification{})
	if r.Err != nil {
		return msgs.Identification{}, r.Err
	}
	return msgs.DecodeIdentification(r.Data)
}

// CurrentTime requests the clock of the head.
func (c *Client) CurrentTime(ctx context.Context) (msgs.TimeValue, error) {
	return c.timeValue(ctx, dispatch.GetCurrentTime{})
}

// Latest requests the latest recorded timestamp.
func (c *Client) Latest(ctx context.Context) (msgs.TimeValue, error) {
	return c.timeValue(ctx, dispatch.GetLatestTimestamp{})
}

func (c *Client) timeValue(ctx context.Context, cmd dispatch.Command) (msgs.TimeValue, error) {
	r := c.Call(ctx, cmd)
	if r.Err != nil {
		return msgs.TimeValue{}, r.Err
	}
	return msgs.DecodeTimeValue(r.Data)
}

// Laps lists the recorded laps.
func (c *Client) Laps(ctx context.Context) ([]msgs.LapEntry, error) {
	r := c.Call(ctx, dispatch.GetAllLaps{})
	if r.Err != nil {
		return nil, r.Err
	}
	var entries []msgs.LapEntry
	for p := r.Data; len(p) >= msgs.LapEntrySize; p = p[msgs.LapEntrySize:] {
		e, err := msgs.DecodeLapEntry(p)
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SetMode changes the operation mode.
func (c *Client) SetMode(ctx context.Context, mode laps.OperationMode) error {
	return c.Call(ctx, dispatch.UpdateOperationMode{Mode: mode}).Err
}

// Display pushes a value in milliseconds to the display.
func (c *Client) Display(ctx context.Context, ms uint32) error {
	return c.Call(ctx, dispatch.UpdateDisplayedTime{Ms: ms}).Err
}

// Allow adds an allowed device.
func (c *Client) Allow(ctx context.Context, e devices.AllowedEntry) error {
	return c.Call(ctx, dispatch.AddAllowedDevice{Entry: e}).Err
}

// Disallow removes a device.
func (c *Client) Disallow(ctx context.Context, addr devices.Address) error {
	return c.Call(ctx, dispatch.RemoveAllowedDevice{Address: addr}).Err
}

// Allowed lists the allowed devices.
func (c *Client) Allowed(ctx context.Context) ([]devices.Device, error) {
	return c.deviceList(ctx, dispatch.ListAllowedDevices{})
}

// Detect scans for devices and lists all known ones. Progress is
// reported on the event chan.
func (c *Client) Detect(ctx context.Context) ([]devices.Device, error) {
	return c.deviceList(ctx, dispatch.ListDetectedDevices{})
}

func (c *Client) deviceList(ctx context.Context, cmd dispatch.Command) ([]devices.Device, error) {
	r := c.Call(ctx, cmd)
	if r.Err != nil {
		return nil, r.Err
	}
	var list []devices.Device
	for p := r.Data; len(p) >= devices.EntrySize; p = p[devices.EntrySize:] {
		d, err := devices.DecodeDevice(p)
		if err != nil {
			return list, err
		}
		list = append(list, d)
	}
	return list, nil
}

// Closest requests the closest active allowed device.
func (c *Client) Closest(ctx context.Context) (devices.Device, error) {
	r := c.Call(ctx, dispatch.GetClosestDevice{})
	if r.Err != nil {
		return devices.Device{}, r.Err
	}
	return devices.DecodeDevice(r.Data)
}
