package driver

import "time"

// PollEvery calls probe every interval until it reports a change, returns an
// error, or timeout elapses. probe is always called at least once.
func PollEvery(timeout, interval time.Duration, probe func() (bool, error)) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		changed, err := probe()
		if err != nil || changed {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if remaining < interval {
			time.Sleep(remaining)
		} else {
			time.Sleep(interval)
		}
	}
}
