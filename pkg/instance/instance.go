package instance

import "os"

// GetID returns the process instance identifier used in startup logs.
// MLC_INSTANCE_ID wins over the platform-provided DYNO.
func GetID() string {
	for _, key := range []string{"MLC_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
