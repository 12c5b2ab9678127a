package go_func_utils

import (
	"log"
	"runtime/debug"
	"sync"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger with its stack
// before being re-raised, since the terminal UI swallows anything printed to stdout.
func SafeGo(logger *log.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}

// SafeGoWG is SafeGo that also tracks the goroutine in wg
func SafeGoWG(logger *log.Logger, wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	SafeGo(logger, func() {
		defer wg.Done()
		fn()
	})
}
