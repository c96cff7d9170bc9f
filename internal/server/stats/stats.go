// Package stats keeps per-command counters for the STATS reply.
package stats

import (
	"fmt"
	"sync"
)

// Stats counts executed commands across all sessions.
type Stats struct {
	mu       sync.Mutex
	commands map[string]int
	invalid  int
}

func New() *Stats {
	return &Stats{commands: make(map[string]int)}
}

// IncCommand counts one execution of a recognized command.
func (s *Stats) IncCommand(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[cmd]++
}

// IncInvalid counts one unrecognized command.
func (s *Stats) IncInvalid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid++
}

// Command returns the counter for one command.
func (s *Stats) Command(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands[cmd]
}

// Summary renders the one-line STATS reply. Total and active connection
// counts are owned by the registry and passed in.
func (s *Stats) Summary(totalConnections, active int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf(
		"STATISTICHE SERVER | Tot.Conn: %d | Attive: %d | TIME: %d | NAME: %d | INFO: %d | EXIT: %d | Invalidi: %d",
		totalConnections, active,
		s.commands["TIME"], s.commands["NAME"], s.commands["INFO"], s.commands["EXIT"],
		s.invalid)
}
