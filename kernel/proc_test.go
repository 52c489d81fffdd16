package kernel

import (
	"errors"
	"testing"

	"minikernel/hal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootStartsInit(t *testing.T) {
	f := newFake("init")
	k := newTestKernel(f, 4, "init")

	assert.Len(t, f.handlers, 6)
	assert.Equal(t, PID(0), k.Current())
	assert.Equal(t, Running, k.pcb(0).State)
	assert.Empty(t, k.ReadyQueue())

	require.Len(t, f.switches, 1)
	assert.Nil(t, f.switches[0].save)
	assert.Same(t, k.pcb(0).Context, f.switches[0].restore)
	assert.Equal(t, hal.Level0, f.level)
}

func TestBootWithoutInit(t *testing.T) {
	f := newFake()
	k := New(f, Config{Log: quietLog()})

	msg := catchFatal(func() { _ = k.Boot() })
	assert.Contains(t, msg, "init process not found")
	assert.Empty(t, f.switches)
}

func TestCreateProcessWhenTableFull(t *testing.T) {
	f := newFake("init", "a")
	k := newTestKernel(f, 2, "init")

	pid, err := k.createProcess("a")
	require.NoError(t, err)
	require.Equal(t, PID(1), pid)

	before := k.Procs()
	images, stacks := len(f.images), len(f.stacks)

	pid, err = k.createProcess("a")
	assert.True(t, errors.Is(err, ErrNoFreeSlot))
	assert.Equal(t, NoPID, pid)
	assert.Equal(t, before, k.Procs())
	assert.Equal(t, []PID{1}, k.ReadyQueue())
	assert.Len(t, f.images, images)
	assert.Len(t, f.stacks, stacks)

	addr := f.poke(512, "a")
	assert.Equal(t, Failure, f.syscall(SysCreateProcess, addr))
	assert.Equal(t, before, k.Procs())
}

func TestCreateUnknownProgram(t *testing.T) {
	f := newFake("init")
	k := newTestKernel(f, 4, "init")
	before := k.Procs()

	_, err := k.createProcess("nada")
	assert.True(t, errors.Is(err, ErrUnknownProgram))
	assert.Contains(t, err.Error(), `create "nada"`)
	assert.Equal(t, before, k.Procs())
	assert.Len(t, f.images, 1)
	assert.Len(t, f.stacks, 1)
}

func TestCreateProcessSyscall(t *testing.T) {
	f := newFake("init", "yosoy")
	k := newTestKernel(f, 4, "init")

	addr := f.poke(512, "yosoy")
	assert.Equal(t, int64(1), f.syscall(SysCreateProcess, addr))
	assert.Equal(t, int64(2), f.syscall(SysCreateProcess, addr))

	assert.Equal(t, []PID{1, 2}, k.ReadyQueue())
	p := k.pcb(1)
	assert.Equal(t, Ready, p.State)
	assert.Equal(t, "yosoy", p.Program)
	assert.NotNil(t, p.Context)
	assert.NotNil(t, p.Stack)
	assert.NotNil(t, p.Image)
}

func TestTerminateProcess(t *testing.T) {
	f := newFake("init", "a", "b")
	k := newTestKernel(f, 3, "init")
	_, err := k.createProcess("a")
	require.NoError(t, err)
	_, err = k.createProcess("b")
	require.NoError(t, err)

	res := f.syscall(SysTerminateProcess)
	assert.Equal(t, int64(SysTerminateProcess), res, "result register must be left alone")

	assert.Equal(t, PID(1), k.Current())
	assert.Equal(t, Running, k.pcb(1).State)
	assert.Equal(t, Unused, k.pcb(0).State)
	assert.Nil(t, k.pcb(0).Image)
	assert.Equal(t, []PID{2}, k.ReadyQueue())
	assert.Len(t, f.images, 2)
	assert.Len(t, f.stacks, 2)

	last := f.switches[len(f.switches)-1]
	assert.Nil(t, last.save)
	assert.Same(t, k.pcb(1).Context, last.restore)

	pid, err := k.createProcess("a")
	require.NoError(t, err)
	assert.Equal(t, PID(0), pid, "freed slot is reused")
}

func TestTerminateLastProcessIdles(t *testing.T) {
	f := newFake("init", "a")
	k := newTestKernel(f, 2, "init")

	f.onWait = func() {
		_, err := k.createProcess("a")
		require.NoError(t, err)
	}
	f.syscall(SysTerminateProcess)

	assert.Equal(t, 1, f.waits)
	assert.Equal(t, PID(1), k.Current())
	assert.Equal(t, Unused, k.pcb(0).State)
	assert.Len(t, f.stacks, 1)
}
