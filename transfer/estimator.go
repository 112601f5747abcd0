package transfer

import "time"

// EtaUnknown is reported when no speed sample exists yet, so callers never
// see NaN or a division panic.
const EtaUnknown float64 = -1

// Speed returns average throughput in bytes per second, or 0 when no time
// has elapsed.
func Speed(bytesTransferred int64, elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 || bytesTransferred <= 0 {
		return 0
	}
	return float64(bytesTransferred) / seconds
}

// Eta returns the estimated seconds remaining, 0 once nothing remains, and
// EtaUnknown while speed is not positive.
func Eta(bytesTransferred, totalBytes int64, speed float64) float64 {
	remaining := totalBytes - bytesTransferred
	if remaining <= 0 {
		return 0
	}
	if speed <= 0 {
		return EtaUnknown
	}
	return float64(remaining) / speed
}
