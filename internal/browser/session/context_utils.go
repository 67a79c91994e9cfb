// internal/browser/session/context_utils.go
package session

import "context"

// CombineContext derives a context from primary that is also canceled when secondary
// is. Values come from primary only, so the chromedp target stays reachable while the
// caller's deadline still applies.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
