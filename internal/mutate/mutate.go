// Package mutate perturbs the watched file to trigger a rebuild.
package mutate

import (
	"fmt"
	"os"
)

// AppendNewline appends exactly one newline byte to path. The open is
// append-only, so existing content is never truncated or rewritten. Any
// failure is fatal to the run; there is nothing sensible to retry.
func AppendNewline(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("mutate: open %s: %w", path, err)
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		_ = f.Close()
		return fmt.Errorf("mutate: append to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("mutate: close %s: %w", path, err)
	}
	return nil
}
