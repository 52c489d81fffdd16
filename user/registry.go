package user

import (
	"fmt"
	"sort"
	"sync"

	"minikernel/hal"

	"github.com/google/shlex"
)

// Program is the main function of a user program. Returning from it
// terminates the process.
type Program func(p *Proc)

// Registry resolves program references ("dormilon 3") to entry points. It is
// the program loader of the CPU.
type Registry struct {
	mu    sync.RWMutex
	m     Machine
	progs map[string]Program
}

var _ hal.Loader = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{progs: make(map[string]Program)}
}

// Bind sets the machine that loaded programs run on.
func (r *Registry) Bind(m Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = m
}

// Register adds prog under name, replacing any previous one.
func (r *Registry) Register(name string, prog Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progs[name] = prog
}

// Names returns the registered program names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.progs))
	for name := range r.progs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load implements hal.Loader.
func (r *Registry) Load(ref string) (hal.Entry, error) {
	words, err := shlex.Split(ref)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", ref, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("load %q: %w", ref, hal.ErrNoProgram)
	}

	r.mu.RLock()
	prog, ok := r.progs[words[0]]
	m := r.m
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("load %q: %w", words[0], hal.ErrNoProgram)
	}
	if m == nil {
		return nil, fmt.Errorf("load %q: registry not bound to a machine", words[0])
	}

	name, args := words[0], words[1:]
	return func() {
		p := NewProc(m, name, args)
		prog(p)
		p.TerminateProcess()
	}, nil
}
