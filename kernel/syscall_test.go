package kernel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownSyscall(t *testing.T) {
	f := newFake("init")
	k := newTestKernel(f, 2, "init")
	before := k.Procs()

	assert.Equal(t, Failure, f.syscall(numSyscalls))
	assert.Equal(t, Failure, f.syscall(1<<40))
	assert.Equal(t, before, k.Procs())

	k.ready.n++
	msg := catchFatal(func() { f.syscall(numSyscalls) })
	assert.Contains(t, msg, "syscall: process table inconsistent")
}

func TestGetID(t *testing.T) {
	f := newFake("init", "a")
	k := newTestKernel(f, 4, "init")
	_, err := k.createProcess("a")
	require.NoError(t, err)

	assert.Equal(t, int64(0), f.syscall(SysGetID))
	assert.Equal(t, int64(0), f.syscall(SysGetID))

	f.syscall(SysTerminateProcess)
	assert.Equal(t, int64(1), f.syscall(SysGetID))
}

func TestWrite(t *testing.T) {
	f := newFake("init")
	newTestKernel(f, 2, "init")

	addr := f.poke(1024, "hola mundo\n")
	assert.Equal(t, int64(0), f.syscall(SysWrite, addr, 11))
	assert.Equal(t, "hola mundo\n", f.out.String())

	assert.Equal(t, int64(0), f.syscall(SysWrite, addr, 0))
	assert.Equal(t, "hola mundo\n", f.out.String())
}

func TestGetTimes(t *testing.T) {
	f := newFake("init", "a")
	k := newTestKernel(f, 2, "init")
	_, err := k.createProcess("a")
	require.NoError(t, err)

	assert.Equal(t, int64(0), f.syscall(SysGetTimes, 0))

	tick(f, 4)
	f.user = false
	tick(f, 3)
	f.user = true

	before := k.Procs()
	assert.Equal(t, int64(7), f.syscall(SysGetTimes, 0))
	assert.Equal(t, before, k.Procs(), "null pointer touches no counters")

	const addr = 2048
	got := f.syscall(SysGetTimes, addr)
	assert.Equal(t, int64(7), got)
	assert.Equal(t, uint64(7), k.Ticks())
	user1 := binary.LittleEndian.Uint32(f.mem[addr:])
	sys1 := binary.LittleEndian.Uint32(f.mem[addr+4:])
	assert.Equal(t, uint32(4), user1)
	assert.Equal(t, uint32(3), sys1)

	tick(f, 2)
	f.user = false
	tick(f, 1)
	f.user = true

	assert.Equal(t, int64(10), f.syscall(SysGetTimes, addr))
	user2 := binary.LittleEndian.Uint32(f.mem[addr:])
	sys2 := binary.LittleEndian.Uint32(f.mem[addr+4:])
	assert.GreaterOrEqual(t, user2, user1)
	assert.GreaterOrEqual(t, sys2, sys1)
	assert.Equal(t, uint32(6), user2)
	assert.Equal(t, uint32(4), sys2)

	tick(f, 1)
	assert.Greater(t, f.syscall(SysGetTimes, 0), got)
}
