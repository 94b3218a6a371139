// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"fmt"
	"sync"
	"time"
)

const (
	// RegisterState is reported when an actor starts
	RegisterState = 0
	// TerminalState is reported when an actor returns or panics
	TerminalState = -1
)

// State is an abstract state of a procedure
type State struct {
	Signature string
	ID        int
}

func (s State) String() string { return fmt.Sprintf("%s#%d", s.Signature, s.ID) }

// A Transition is the entry of a state machine into a state
type Transition struct {
	Time      time.Time
	Goroutine int64
	Instance  int64
	// Machine is the name of the state machine, the class whose procedure reported the state
	Machine string
	State   State
}

func (t Transition) String() string {
	return fmt.Sprintf("%s g%d %s@%d -> %s", t.Time.Format(time.RFC3339Nano), t.Goroutine, t.Machine, t.Instance,
		t.State)
}

// A Listener receives the transitions. It may report states itself.
type Listener func(Transition)

// Machine is the state machine of one instance. A registered actor running on an instance pushes the name and
// state of the machine, and restores them when it terminates.
type Machine struct {
	Instance int64
	name     string
	current  State
	names    []string
	states   []State
	// registered is set when a registration created the machine, which is released by the matching terminal state
	registered bool
}

// Name returns the name of the machine
func (m *Machine) Name() string { return m.name }

// Current returns the current state of the machine
func (m *Machine) Current() State { return m.current }

func (m *Machine) register(name string) {
	m.names = append(m.names, m.name)
	m.states = append(m.states, m.current)
	m.name = name
}

func (m *Machine) unregister() {
	n := len(m.names)
	if n == 0 {
		return
	}
	m.name, m.names = m.names[n-1], m.names[:n-1]
	m.current, m.states = m.states[n-1], m.states[:n-1]
}

// Manager tracks the machines of all instances and the actors running on each goroutine. It is safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	machines map[int64]*Machine
	// actors maps goroutines to the stack of instances of the registered actors they run
	actors   map[int64][]int64
	listener Listener
}

// NewManager returns a manager notifying listener, which may be nil
func NewManager(listener Listener) *Manager {
	return &Manager{
		machines: map[int64]*Machine{},
		actors:   map[int64][]int64{},
		listener: listener,
	}
}

// SetListener replaces the listener of m
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Update records that goroutine entered state id of signature in the class className.
// The register state pushes instance on the actor stack of the goroutine, the terminal state pops it, and any other
// state updates the machine of the actor on top of the stack. A goroutine without actor updates the machine of
// instance. Update returns false for a terminal state on a goroutine without actor.
func (m *Manager) Update(goroutine int64, className string, instance int64, signature string, id int) bool {
	m.mu.Lock()
	stack := m.actors[goroutine]
	switch id {
	case RegisterState:
		m.actors[goroutine] = append(stack, instance)
	case TerminalState:
		if len(stack) == 0 {
			m.mu.Unlock()
			return false
		}
		instance = stack[len(stack)-1]
		if len(stack) == 1 {
			delete(m.actors, goroutine)
		} else {
			m.actors[goroutine] = stack[:len(stack)-1]
		}
	default:
		if len(stack) > 0 {
			instance = stack[len(stack)-1]
		}
	}

	machine, ok := m.machines[instance]
	if !ok {
		machine = &Machine{Instance: instance, name: className, registered: id == RegisterState}
		m.machines[instance] = machine
	} else if id == RegisterState {
		machine.register(className)
	}
	state := State{Signature: signature, ID: id}
	machine.current = state
	t := Transition{Time: time.Now(), Goroutine: goroutine, Instance: instance, Machine: machine.name, State: state}
	if id == TerminalState {
		if len(machine.names) == 0 && machine.registered {
			delete(m.machines, instance)
		}
		machine.unregister()
	}
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener(t)
	}
	return true
}

// Machine returns a copy of the machine of instance
func (m *Manager) Machine(instance int64) (Machine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	machine, ok := m.machines[instance]
	if !ok {
		return Machine{}, false
	}
	return Machine{Instance: machine.Instance, name: machine.name, current: machine.current}, true
}

// Actor returns the instance of the actor running on top of goroutine, if any
func (m *Manager) Actor(goroutine int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.actors[goroutine]
	if len(stack) == 0 {
		return 0, false
	}
	return stack[len(stack)-1], true
}
