package aresdriver

import "log"

// Debug gates the driver's terse trace logging. Off by default; flip it on
// in tests or when diagnosing a stuck request.
var Debug = false

func logf(format string, args ...interface{}) {
	if !Debug {
		return
	}
	log.Printf("(aresdriver) "+format, args...)
}
