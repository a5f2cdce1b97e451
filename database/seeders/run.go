// Package seeders fills a fresh database with the demo campus: an admin, a
// shopkeeper, a student and a few shops. Seeders are idempotent and each
// one runs in its own transaction.
package seeders

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gorm.io/gorm"
)

type SeederFunc func(tx *gorm.DB) error

var (
	mu      sync.Mutex
	names   []string
	seeders = map[string]SeederFunc{}
)

// Register adds a seeder; later registrations under the same name replace
// the function but keep the original position.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := seeders[name]; !ok {
		names = append(names, name)
	}
	seeders[name] = fn
}

// RunAll executes every seeder in registration order and stops at the first
// failure, rolling that seeder back.
func RunAll(db *gorm.DB, out io.Writer) error {
	mu.Lock()
	order := append([]string(nil), names...)
	fns := make([]SeederFunc, len(order))
	for i, n := range order {
		fns[i] = seeders[n]
	}
	mu.Unlock()

	for i, name := range order {
		start := time.Now()
		fmt.Fprintf(out, "  seeding %-10s", name)
		if err := db.Transaction(fns[i]); err != nil {
			fmt.Fprintln(out, "failed")
			return fmt.Errorf("seeder %q: %w", name, err)
		}
		fmt.Fprintf(out, "done (%s)\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
