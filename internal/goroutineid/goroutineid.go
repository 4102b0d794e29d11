// Package goroutineid reports the id of the calling goroutine.
//
// The id is only used to recognise re-entrant calls made on the goroutine
// that already holds a lock; it is never used for scheduling.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

// The header of a single goroutine trace fits comfortably in 64 bytes:
// "goroutine 18446744073709551615 [running]:".
const headerSize = 64

var headerPool = sync.Pool{
	New: func() any {
		b := make([]byte, headerSize)
		return &b
	},
}

var prefix = []byte("goroutine ")

// Get returns the id of the calling goroutine, or 0 if it cannot be
// determined.
func Get() int64 {
	bp := headerPool.Get().(*[]byte)
	defer headerPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

// parse extracts the id from the first line of a goroutine trace.
func parse(header []byte) int64 {
	if !bytes.HasPrefix(header, prefix) {
		return 0
	}
	var id int64
	digits := 0
	for _, c := range header[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
		digits++
	}
	if digits == 0 {
		return 0
	}
	return id
}
