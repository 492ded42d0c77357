package assessment

import "time"

// SetNow freezes the service clock at now; the returned func restores it.
func SetNow(now time.Time) func() {
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = orig }
}
