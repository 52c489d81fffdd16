package kernel

import (
	"encoding/binary"
	"math"

	"github.com/sirupsen/logrus"
)

// System call numbers. These are ABI: the user library depends on them.
const (
	SysCreateProcess = iota
	SysTerminateProcess
	SysWrite
	SysGetID
	SysSleep
	SysGetTimes

	numSyscalls
)

// Failure is the generic system call error result.
const Failure int64 = -1

// MaxProgramRef bounds the program reference read by create_process.
const MaxProgramRef = 256

// TimesSize is the size of the structure get_times fills in: user and
// system tick counts as little-endian uint32.
const TimesSize = 8

var syscallNames = [numSyscalls]string{
	SysCreateProcess:    "create_process",
	SysTerminateProcess: "terminate_process",
	SysWrite:            "write",
	SysGetID:            "get_id",
	SysSleep:            "sleep",
	SysGetTimes:         "get_times",
}

type service func() (int64, outcome)

// syscallTrap dispatches on register 0 and writes the result back to it.
func (k *Kernel) syscallTrap() {
	nr := k.p.ReadRegister(0)
	name := "syscall"
	res := Failure
	if nr < numSyscalls {
		var out outcome
		name = syscallNames[nr]
		if res, out = k.services[nr](); out == transferred {
			return
		}
	} else {
		k.log.WithFields(logrus.Fields{"pid": k.current, "nr": nr}).Warn("unknown system call")
	}
	k.p.WriteRegister(0, uint64(res))
	k.audit(name)
}

func (k *Kernel) sysCreateProcess() (int64, outcome) {
	k.procLog(k.current).Debug("create_process")

	prog, err := k.p.CopyInString(k.p.ReadRegister(1), MaxProgramRef)
	if err != nil {
		k.procLog(k.current).WithError(err).Warn("create_process: bad program reference")
		return Failure, resumed
	}
	pid, err := k.createProcess(prog)
	if err != nil {
		k.procLog(k.current).WithError(err).Warn("create_process failed")
		return Failure, resumed
	}
	return int64(pid), resumed
}

func (k *Kernel) sysTerminateProcess() (int64, outcome) {
	k.procLog(k.current).Info("process exit")
	return 0, k.retire()
}

func (k *Kernel) sysWrite() (int64, outcome) {
	addr := k.p.ReadRegister(1)
	n := k.p.ReadRegister(2)
	if err := k.p.WriteOutput(addr, int(n)); err != nil {
		return Failure, resumed
	}
	return 0, resumed
}

func (k *Kernel) sysGetID() (int64, outcome) {
	return int64(k.current), resumed
}

// sysSleep blocks the caller for seconds*TicksPerSecond clock ticks. It
// returns once the caller has been woken and dispatched again.
func (k *Kernel) sysSleep() (int64, outcome) {
	secs := k.p.ReadRegister(1)
	if secs == 0 {
		return 0, resumed
	}

	tps := int64(k.cfg.TicksPerSecond)
	if limit := uint64(math.MaxInt64 / tps); secs > limit {
		secs = limit
	}

	cur := k.current
	p := k.pcb(cur)
	p.SleepTicks = int64(secs) * tps
	k.procLog(cur).WithField("ticks", p.SleepTicks).Debug("sleeping")

	k.masked(func() {
		p.State = Blocked
		k.unlink(cur)
		k.insertTail(&k.sleeping, cur)
	})

	next := k.dispatch()
	if next != cur {
		k.log.WithFields(logrus.Fields{"from": cur, "to": next, "tick": k.ticks}).Debug("context switch on sleep")
	}
	k.p.SwitchContext(p.Context, k.pcb(next).Context)
	return 0, resumed
}

// sysGetTimes returns the tick count and, given a non-null pointer, stores
// the caller's user and system tick counts there.
func (k *Kernel) sysGetTimes() (int64, outcome) {
	addr := k.p.ReadRegister(1)
	if addr != 0 {
		p := k.pcb(k.current)
		var buf [TimesSize]byte
		binary.LittleEndian.PutUint32(buf[0:4], uint32(p.UserTicks))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(p.SystemTicks))
		if err := k.p.CopyOut(addr, buf[:]); err != nil {
			return Failure, resumed
		}
	}
	return int64(k.ticks), resumed
}
