package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify failures across ingest components.
// Wrap tags errors with one of these so callers can route on errors.Is
// without string matching.
var (
	// ErrFileRecoverable marks a per-file failure (unreadable bytes, bad
	// image data). The run records it and continues.
	ErrFileRecoverable = errors.New("recoverable file error")
	// ErrMalformedInput marks malformed but non-fatal input such as a bad
	// marker file; defaults are substituted and a warning recorded.
	ErrMalformedInput = errors.New("malformed input")
	// ErrStructuralMerge marks an invalid parent/child attachment during the
	// saving merge; the attachment is skipped with a warning.
	ErrStructuralMerge = errors.New("structural merge error")
	// ErrPrecondition marks a dispatcher precondition failure.
	ErrPrecondition = errors.New("precondition failed")
	// ErrFatal marks whole-run-invalidating failures.
	ErrFatal = errors.New("fatal error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrFatal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether the error should abort the whole run rather than be
// recorded as a warning.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileRecoverable) || errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrStructuralMerge) || errors.Is(err, ErrPrecondition) {
		return false
	}
	return true
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
