package image

import (
	"fmt"
	"log"
)

// attempt runs fn and logs its failure instead of returning it. A panic in
// fn, e.g. from a broken decoder, counts as a failure too.
func attempt(logger *log.Logger, stage string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("render: %s: panic: %v", stage, r)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		logger.Printf("render: %s: %v", stage, err)
		return false
	}
	return true
}

func stageName(kind, ref string) string {
	if len(ref) > 64 {
		ref = ref[:61] + "..."
	}
	return fmt.Sprintf("%s %q", kind, ref)
}
