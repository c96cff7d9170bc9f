package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_CountersAndSummary(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncCommand("TIME")
			s.IncInvalid()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, s.Command("TIME"))

	out := s.Summary(12, 3)
	assert.Contains(t, out, "Tot.Conn: 12")
	assert.Contains(t, out, "Attive: 3")
	assert.Contains(t, out, "TIME: 10")
	assert.Contains(t, out, "Invalidi: 10")
}
