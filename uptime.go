package main

import "time"

var started = time.Now()

// Uptime reports how long the program has been running
func Uptime() time.Duration {
	return time.Since(started).Truncate(time.Second)
}
