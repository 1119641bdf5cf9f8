package ftputil

import "time"

// SynchronizeTimes implements §4.H: measure and validate the signed
// client/server clock offset via a zero-byte probe file in the
// current working directory, then store it as the handle's time
// shift.
func (h *Host) SynchronizeTimes() error {
	f, err := h.File(syncProbeName, "w")
	if err != nil {
		return newError(KindTimeShift, "directory not writable", err)
	}
	if err := f.Close(); err != nil {
		return newError(KindTimeShift, "directory not writable", err)
	}
	clientNow := time.Now()

	rec, statErr := h.Stat(syncProbeName)
	removeErr := h.Remove(syncProbeName)
	if statErr != nil || removeErr != nil {
		return newError(KindTimeShift, "could write but not unlink", firstNonNil(statErr, removeErr))
	}

	rawShift := time.Unix(rec.MTime, 0).Sub(clientNow)
	rounded := roundToHours(rawShift)
	if absDuration(rounded) > 24*time.Hour {
		return newError(KindTimeShift, "implausible clock offset", nil)
	}
	if absDuration(rawShift-rounded) > 5*time.Minute {
		return newError(KindTimeShift, "clock offset is not within 5 minutes of a whole hour", nil)
	}
	h.timeShift = rounded
	return nil
}

// roundToHours implements §4.H's stated rounding rule: add 30 minutes
// to the magnitude, divide by an hour, truncate, and re-apply sign.
func roundToHours(d time.Duration) time.Duration {
	sign := time.Duration(1)
	if d < 0 {
		sign = -1
		d = -d
	}
	hours := (d + 30*time.Minute) / time.Hour
	return sign * hours * time.Hour
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
