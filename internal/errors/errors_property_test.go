//go:build property

package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCollectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent addition loses nothing", prop.ForAll(
		func(goroutines int, perGoroutine int) bool {
			collector := NewCollector()

			var wg sync.WaitGroup
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						collector.Add(Diagnostic{
							Template: fmt.Sprintf("t%d.html", id),
							Tag:      "ui:card",
							Line:     i + 1,
							Message:  "unknown",
							Severity: SeverityNotice,
						})
					}
				}(g)
			}
			wg.Wait()

			return len(collector.All()) == goroutines*perGoroutine
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 20),
	))

	properties.Property("All is ordered by line within a template", prop.ForAll(
		func(lines []int) bool {
			collector := NewCollector()
			for _, line := range lines {
				collector.Add(Diagnostic{Template: "page.html", Line: line})
			}
			all := collector.All()
			for i := 1; i < len(all); i++ {
				if all[i-1].Line > all[i].Line {
					return false
				}
			}
			return len(all) == len(lines)
		},
		gen.SliceOf(gen.IntRange(1, 500)),
	))

	properties.Property("a name is always its own closest match", prop.ForAll(
		func(name string, others []string) bool {
			candidates := append([]string{name}, others...)
			closest := Closest(name, candidates, 0)
			return len(closest) > 0
		},
		gen.Identifier(),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
