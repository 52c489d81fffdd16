// Package programs holds the sample user programs shipped with the kernel.
package programs

import (
	"strconv"

	"minikernel/user"
)

// InitChildren is what init starts, in order.
var InitChildren = []string{
	"yosoy",
	"simplon",
	"dormilon 2",
	"dormilon 1",
	"tiempos",
	"excep_arit",
	"excep_mem",
}

// Register adds every sample program to r.
func Register(r *user.Registry) {
	r.Register("init", Init)
	r.Register("yosoy", Yosoy)
	r.Register("simplon", Simplon)
	r.Register("dormilon", Dormilon)
	r.Register("tiempos", Tiempos)
	r.Register("excep_arit", ExcepArit)
	r.Register("excep_mem", ExcepMem)
	r.Register("creador", Creador)
	r.Register("mal_tiempos", MalTiempos)
}

// Init starts InitChildren and exits.
func Init(p *user.Proc) {
	p.Printf("init: pid %d\n", p.GetID())
	for _, prog := range InitChildren {
		if id := p.CreateProcess(prog); id < 0 {
			p.Printf("init: cannot create %q\n", prog)
		}
	}
	p.Printf("init: done\n")
}

// Yosoy prints its pid twice.
func Yosoy(p *user.Proc) {
	for i := 0; i < 2; i++ {
		p.Printf("yosoy: soy el proceso %d\n", p.GetID())
	}
}

// Simplon writes a few lines with some work in between.
func Simplon(p *user.Proc) {
	for i := 1; i <= 3; i++ {
		p.Printf("simplon: vuelta %d\n", i)
		p.Spin(1000)
	}
}

// Dormilon sleeps for the seconds given as its first argument (default 1).
func Dormilon(p *user.Proc) {
	secs := uint(1)
	if args := p.Args(); len(args) > 0 {
		if n, err := strconv.ParseUint(args[0], 10, 32); err == nil {
			secs = uint(n)
		}
	}
	id := p.GetID()
	start := p.GetTimes(nil)
	p.Printf("dormilon %d: duermo %d s (tick %d)\n", id, secs, start)
	p.Sleep(secs)
	p.Printf("dormilon %d: despierto (tick %d)\n", id, p.GetTimes(nil))
}

// Tiempos burns some instructions and reports its accounting.
func Tiempos(p *user.Proc) {
	p.Spin(20000)
	var t user.Times
	ticks := p.GetTimes(&t)
	p.Printf("tiempos %d: ticks %d usuario %d sistema %d\n", p.GetID(), ticks, t.User, t.System)
}

// ExcepArit divides by zero.
func ExcepArit(p *user.Proc) {
	p.Printf("excep_arit: dividiendo por cero\n")
	p.Printf("excep_arit: resultado %d (no debe verse)\n", p.Div(1, 0))
}

// ExcepMem writes to address 0.
func ExcepMem(p *user.Proc) {
	p.Printf("excep_mem: escribiendo en la direccion 0\n")
	p.Store(0, 1)
	p.Printf("excep_mem: sobrevivio (no debe verse)\n")
}

// Creador starts n copies of a program: "creador [n] [prog]".
func Creador(p *user.Proc) {
	n, prog := 20, "yosoy"
	args := p.Args()
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	if len(args) > 1 {
		prog = args[1]
	}
	for i := 0; i < n; i++ {
		id := p.CreateProcess(prog)
		p.Printf("creador: %s -> %d\n", prog, id)
	}
}

// MalTiempos hands get_times an unmapped address. The kernel faults
// dereferencing it and the system halts.
func MalTiempos(p *user.Proc) {
	p.Printf("mal_tiempos: llamando con un puntero invalido\n")
	p.TimesAt(8)
}
