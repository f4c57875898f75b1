package comm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	now uint32
}

func (c *testClock) NowMs() uint32 {
	return c.now
}

type framerEnv struct {
	t     *testing.T
	clock *testClock
	tr    *MemTransport
	f     *Framer
}

func newFramerEnv(t *testing.T) *framerEnv {
	env := &framerEnv{t: t, clock: &testClock{now: 1000}, tr: &MemTransport{}}
	env.f = NewFramer(env.tr, env.clock)
	return env
}

func commandBytes(t *testing.T, typ CommandType, data ...byte) []byte {
	encoded, err := (&Frame{Type: typ, Data: data}).AppendCommand(nil)
	require.NoError(t, err)
	return encoded
}

func (e *framerEnv) poll(advanceMs uint32) {
	e.clock.now += advanceMs
	e.f.Poll()
}

func (e *framerEnv) requireState(s State) {
	require.Equal(e.t, s, e.f.State())
}

func (e *framerEnv) requireCommand(typ CommandType, data ...byte) {
	require.True(e.t, e.f.CommandAvailable())
	cmd := e.f.TakeCommand()
	require.NotNil(e.t, cmd)
	require.Equal(e.t, typ, cmd.Type)
	if len(data) == 0 {
		require.Empty(e.t, cmd.Data)
	} else {
		require.Equal(e.t, data, cmd.Data)
	}
	require.False(e.t, e.f.CommandAvailable())
	require.Nil(e.t, e.f.TakeCommand())
}

func TestFramerReceivesCommand(t *testing.T) {
	env := newFramerEnv(t)
	env.poll(10)
	env.requireState(StateIdle)
	require.False(t, env.f.CommandAvailable())

	env.tr.Inject(commandBytes(t, CmdUpdateDisplayedTime, 1, 2, 3, 4)...)
	env.poll(10)
	env.requireState(StateWaiting)
	env.requireCommand(CmdUpdateDisplayedTime, 1, 2, 3, 4)
}

func TestFramerAssemblesSplitFrame(t *testing.T) {
	env := newFramerEnv(t)
	for _, b := range commandBytes(t, CmdGetAllLaps) {
		require.False(t, env.f.CommandAvailable())
		env.tr.Inject(b)
		env.poll(5)
	}
	env.requireState(StateWaiting)
	env.requireCommand(CmdGetAllLaps)
}

func TestFramerDropsChecksumMismatch(t *testing.T) {
	env := newFramerEnv(t)
	corrupted := commandBytes(t, CmdGetCurrentTime)
	corrupted[3] ^= 0x01
	env.tr.Inject(corrupted...)
	env.poll(10)
	env.requireState(StateIdle)
	require.False(t, env.f.CommandAvailable())

	env.tr.Inject(commandBytes(t, CmdGetCurrentTime)...)
	env.poll(10)
	env.requireState(StateWaiting)
	env.requireCommand(CmdGetCurrentTime)
}

func TestFramerReceiveTimeout(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(SyncByte, 0x04)
	env.poll(10)
	env.requireState(StateReceiving)
	env.poll(ReceiveTimeoutMs - 1)
	env.requireState(StateReceiving)
	env.poll(1)
	env.requireState(StateIdle)

	// the dropped bytes must not prefix the next frame.
	env.tr.Inject(commandBytes(t, CmdGetIdentification, 9)...)
	env.poll(10)
	env.requireState(StateWaiting)
	env.requireCommand(CmdGetIdentification, 9)
}

func TestFramerSkipsBytesBeforeSync(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(0x00, 0x13, 0x37)
	env.tr.Inject(commandBytes(t, CmdGetClosestDevice)...)
	env.poll(10)
	env.requireState(StateWaiting)
	env.requireCommand(CmdGetClosestDevice)
}

func TestFramerDropsLoneSync(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(SyncByte)
	env.poll(10)
	env.requireState(StateIdle)
	env.poll(ReceiveTimeoutMs)
	env.requireState(StateIdle)

	env.tr.Inject(commandBytes(t, CmdGetAllLaps)...)
	env.poll(10)
	env.requireState(StateWaiting)
	env.requireCommand(CmdGetAllLaps)
}

func TestFramerRejectsOversizeLength(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(SyncByte, MaxDataLength+1, 0x00)
	env.poll(10)
	env.requireState(StateIdle)
}

func TestFramerWaitTimeout(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(commandBytes(t, CmdGetCurrentTime)...)
	env.poll(10)
	env.requireState(StateWaiting)
	env.poll(WaitTimeoutMs - 1)
	env.requireState(StateWaiting)
	env.poll(1)
	env.requireState(StateIdle)
	require.False(t, env.f.CommandAvailable())
}

func TestFramerRelease(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(commandBytes(t, CmdNoOperation)...)
	env.poll(10)
	env.requireCommand(CmdNoOperation)
	env.f.Release()
	env.requireState(StateIdle)
}

func TestFramerSendsResponse(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(commandBytes(t, CmdGetCurrentTime)...)
	env.poll(10)
	env.requireCommand(CmdGetCurrentTime)

	require.True(t, env.f.CanSendResponse())
	resp := &Frame{Type: CmdGetCurrentTime, Data: []byte{1, 0, 0, 0, 0}}
	require.NoError(t, env.f.SendResponse(resp, true))
	env.requireState(StateSending)
	env.tr.SetHold(true)
	require.False(t, env.f.CanSendResponse())
	require.Equal(t, ErrBusy, env.f.SendResponse(resp, true))

	env.poll(10)
	env.requireState(StateSending)
	env.tr.SetHold(false)
	env.poll(10)
	env.requireState(StateIdle)

	expected, err := resp.AppendResponse(nil)
	require.NoError(t, err)
	require.Equal(t, expected, env.tr.TakeOutput())
}

func TestFramerSendsPages(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(commandBytes(t, CmdGetAllLaps)...)
	env.poll(10)
	env.requireCommand(CmdGetAllLaps)

	var expected []byte
	for n := 0; n < 3; n++ {
		require.True(t, env.f.CanSendResponse())
		page := &Frame{Status: 1, Type: CmdGetAllLaps, Data: []byte{byte(n), 3}}
		require.NoError(t, env.f.SendResponse(page, n == 2))
		env.poll(10)
		if n < 2 {
			env.requireState(StateSending)
		}
		var err error
		expected, err = page.AppendResponse(expected)
		require.NoError(t, err)
	}
	env.requireState(StateIdle)
	require.Equal(t, expected, env.tr.TakeOutput())
}

func TestFramerSendTimeout(t *testing.T) {
	env := newFramerEnv(t)
	require.NoError(t, env.f.SendResponse(&Frame{Type: CmdGetAllLaps}, false))
	env.poll(SendTimeoutMs - 1)
	env.requireState(StateSending)
	env.poll(1)
	env.requireState(StateIdle)
}

func TestFramerHoldsResponseWhileReceiving(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(SyncByte, 0x02, 0x00)
	env.poll(10)
	env.requireState(StateReceiving)
	require.False(t, env.f.CanSendResponse())
	require.Equal(t, ErrBusy, env.f.SendResponse(&Frame{Type: CmdGetCurrentTime}, true))
	require.Empty(t, env.tr.TakeOutput())
}

func TestFramerDiscardsInputWhileAnswering(t *testing.T) {
	env := newFramerEnv(t)
	env.tr.Inject(commandBytes(t, CmdGetCurrentTime)...)
	env.poll(10)
	env.requireCommand(CmdGetCurrentTime)

	env.tr.Inject(commandBytes(t, CmdGetAllLaps)...)
	env.poll(10)
	require.Zero(t, env.tr.BytesAvailable())
	require.NoError(t, env.f.SendResponse(&Frame{Type: CmdGetCurrentTime}, true))
	env.poll(10)
	env.requireState(StateIdle)
	env.poll(10)
	require.False(t, env.f.CommandAvailable())
}
