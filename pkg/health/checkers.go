package health

import (
	"context"
	"fmt"
	"runtime"
)

// GoroutineCountCheck fails when the process exceeds maxGoroutines, a
// cheap proxy for goroutine leaks.
func GoroutineCountCheck(maxGoroutines int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > maxGoroutines {
			return fmt.Errorf("too many goroutines: %d > %d", n, maxGoroutines)
		}
		return nil
	}
}
