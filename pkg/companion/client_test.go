package companion

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/devices"
	"github.com/robotalks/laptimer/pkg/dispatch"
	"github.com/robotalks/laptimer/pkg/msgs"
)

type chanReadWriter struct {
	readCh  <-chan byte
	writeCh chan byte
}

func (c *chanReadWriter) Read(p []byte) (int, error) {
	p[0] = <-c.readCh
	return 1, nil
}

func (c *chanReadWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		c.writeCh <- b
	}
	return len(p), nil
}

type clientTestEnv struct {
	t        *testing.T
	readCh   chan byte
	writeCh  chan byte
	client   *Client
	requests []*Request
}

func newClientTestEnv(t *testing.T) *clientTestEnv {
	env := &clientTestEnv{
		t:       t,
		readCh:  make(chan byte, 1),
		writeCh: make(chan byte, 1),
	}
	env.client = NewClient(&chanReadWriter{readCh: env.readCh, writeCh: env.writeCh})
	return env
}

func (e *clientTestEnv) wrapFn(name string, fn func(string)) {
	e.t.Logf("START %s", name)
	fn(name)
	e.t.Logf("STOP %s", name)
}

func (e *clientTestEnv) run(fns ...func(string)) {
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go e.client.Run(ctx)
	for n, fn := range fns {
		e.wrapFn(fmt.Sprintf("step-%d", n), fn)
	}
}

func (e *clientTestEnv) sequential(fns ...func(string)) func(string) {
	return func(name string) {
		for n, fn := range fns {
			e.wrapFn(name+fmt.Sprintf(".%d", n), fn)
		}
	}
}

func (e *clientTestEnv) parallel(fns ...func(string)) func(string) {
	return func(name string) {
		var wg sync.WaitGroup
		for n, fn := range fns {
			wg.Add(1)
			go func(name string, fn func(string)) {
				defer wg.Done()
				e.wrapFn(name, fn)
			}(name+fmt.Sprintf(".%d", n), fn)
		}
		wg.Wait()
	}
}

func (e *clientTestEnv) expect(cmds ...dispatch.Command) func(string) {
	return func(name string) {
		for _, cmd := range cmds {
			encoded, err := dispatch.Encode(cmd).AppendCommand(nil)
			require.NoError(e.t, err)
			for i, b := range encoded {
				require.Equalf(e.t, b, <-e.writeCh, "%s.%s.byte[%d] mismatch", name, cmd.Type(), i)
			}
		}
	}
}

func (e *clientTestEnv) inject(frames ...*comm.Frame) func(string) {
	return func(name string) {
		for _, f := range frames {
			encoded, err := f.AppendResponse(nil)
			require.NoError(e.t, err)
			for _, b := range encoded {
				e.readCh <- b
			}
		}
	}
}

func (e *clientTestEnv) clientDo(cmds ...dispatch.Command) func(string) {
	return func(name string) {
		for _, cmd := range cmds {
			e.requests = append(e.requests, e.client.Do(cmd))
		}
	}
}

func (e *clientTestEnv) nextResult(name string) (r Result) {
	require.NotEmptyf(e.t, e.requests, "%s requests empty", name)
	req := e.requests[0]
	e.requests = e.requests[1:]
	select {
	case r = <-req.ResultChan():
	case <-time.After(500 * time.Millisecond):
		e.t.Fatalf("%s: timeout", name)
	}
	return
}

func (e *clientTestEnv) clientResult(data ...byte) func(string) {
	return func(name string) {
		r := e.nextResult(name)
		require.NoErrorf(e.t, r.Err, "%s unexpected err", name)
		if len(data) == 0 {
			require.Emptyf(e.t, r.Data, "%s data not empty", name)
		} else {
			require.Equalf(e.t, data, r.Data, "%s data mismatch", name)
		}
	}
}

func (e *clientTestEnv) clientResultErr(check func(error) bool) func(string) {
	return func(name string) {
		r := e.nextResult(name)
		require.Truef(e.t, check(r.Err), "%s unexpected err %v", name, r.Err)
	}
}

func (e *clientTestEnv) clientEvent(status uint16, typ comm.CommandType, data ...byte) func(string) {
	return func(name string) {
		select {
		case f := <-e.client.EventChan():
			require.Equalf(e.t, status, f.Status, "%s status mismatch", name)
			require.Equalf(e.t, typ, f.Type, "%s type mismatch", name)
			require.Equalf(e.t, data, f.Data, "%s data mismatch", name)
		case <-time.After(500 * time.Millisecond):
			e.t.Fatalf("%s timeout", name)
		}
	}
}

func page(typ comm.CommandType, packet, total uint8, entries ...byte) *comm.Frame {
	data := msgs.PageHeader{Packet: packet, Total: total}.Append(nil)
	return &comm.Frame{Status: msgs.StatusPage, Type: typ, Data: append(data, entries...)}
}

func TestClient(t *testing.T) {
	timeValue := msgs.TimeValue{Value: 1234, Kind: msgs.TimeNone}.Append(nil)
	latest := msgs.TimeValue{Value: 99, Kind: msgs.TimeStartSensor}.Append(nil)
	ident := msgs.Identification{Types: msgs.DeviceTimer}.Append(nil)

	testCases := []struct {
		name  string
		logic func(*clientTestEnv)
	}{
		{
			"simple command",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(dispatch.GetCurrentTime{}),
						env.expect(dispatch.GetCurrentTime{}),
					),
					env.parallel(
						env.inject(&comm.Frame{Type: comm.CmdGetCurrentTime, Data: timeValue}),
						env.clientResult(timeValue...),
					),
				)
			},
		},
		{
			"no reply",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(dispatch.GetCurrentTime{}, dispatch.GetIdentification{}),
						env.expect(dispatch.GetCurrentTime{}, dispatch.GetIdentification{}),
					),
					env.inject(&comm.Frame{Type: comm.CmdGetIdentification, Data: ident}),
					env.clientResultErr(func(err error) bool { return err == ErrNoReply }),
					env.clientResult(ident...),
				)
			},
		},
		{
			"push",
			func(env *clientTestEnv) {
				env.run(
					env.inject(&comm.Frame{Type: comm.CmdGetLatestTimestamp, Data: latest}),
					env.clientEvent(msgs.StatusOK, comm.CmdGetLatestTimestamp, latest...),
				)
			},
		},
		{
			"status error",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(dispatch.GetClosestDevice{}),
						env.expect(dispatch.GetClosestDevice{}),
					),
					env.inject(&comm.Frame{Status: msgs.StatusNotFound, Type: comm.CmdGetClosestDevice}),
					env.clientResultErr(IsNotFound),
				)
			},
		},
		{
			"list",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(dispatch.GetAllLaps{}),
						env.expect(dispatch.GetAllLaps{}),
					),
					env.inject(
						page(comm.CmdGetAllLaps, 0, 2, 1, 2, 3),
						page(comm.CmdGetAllLaps, 1, 2, 4),
					),
					env.clientResult(1, 2, 3, 4),
					// the trailing packet is not an event.
					env.inject(
						page(comm.CmdGetAllLaps, 2, 2),
						&comm.Frame{Type: comm.CmdGetLatestTimestamp, Data: latest},
					),
					env.clientEvent(msgs.StatusOK, comm.CmdGetLatestTimestamp, latest...),
				)
			},
		},
		{
			"scan progress",
			func(env *clientTestEnv) {
				env.run(
					env.parallel(
						env.clientDo(dispatch.ListDetectedDevices{}),
						env.expect(dispatch.ListDetectedDevices{}),
					),
					env.inject(&comm.Frame{Status: msgs.StatusProgress, Type: comm.CmdListDetectedDevices, Data: []byte{10, 1}}),
					env.clientEvent(msgs.StatusProgress, comm.CmdListDetectedDevices, 10, 1),
					env.inject(page(comm.CmdListDetectedDevices, 0, 1, 7)),
					env.clientResult(7),
				)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newClientTestEnv(t)
			tc.logic(env)
		})
	}
}

func TestClientTypedCalls(t *testing.T) {
	env := newClientTestEnv(t)
	a := devices.Device{Address: devices.Address{1, 2, 3, 4, 5, 6}, RSSI: -60, MeasuredPower: -59}
	lap := msgs.LapEntry{Index: 3, Start: 100, End: 900}

	var gotLaps []msgs.LapEntry
	var gotDevices []devices.Device
	var errLaps, errDevices error
	env.run(
		env.parallel(
			func(string) { gotLaps, errLaps = env.client.Laps(context.Background()) },
			env.sequential(
				env.expect(dispatch.GetAllLaps{}),
				env.inject(page(comm.CmdGetAllLaps, 0, 1, lap.Append(nil)...)),
			),
		),
		env.parallel(
			func(string) { gotDevices, errDevices = env.client.Allowed(context.Background()) },
			env.sequential(
				env.expect(dispatch.ListAllowedDevices{}),
				env.inject(page(comm.CmdListAllowedDevices, 0, 1, a.Append(nil)...)),
			),
		),
	)
	require.NoError(t, errLaps)
	require.Equal(t, []msgs.LapEntry{lap}, gotLaps)
	require.NoError(t, errDevices)
	require.Equal(t, []devices.Device{a}, gotDevices)
}

func TestClientCallCanceled(t *testing.T) {
	env := newClientTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for range env.writeCh {
		}
	}()
	cancel()
	r := env.client.Call(ctx, dispatch.GetCurrentTime{})
	require.Equal(t, context.Canceled, r.Err)
	require.Nil(t, env.client.reqsHead)
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Cmd: comm.CmdAddAllowedDevice, Status: msgs.StatusFull}
	require.Equal(t, "AddAllowedDevice: capacity exceeded (0xfffe)", err.Error())
	require.False(t, IsNotFound(err))
}
