package runtime

import (
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/knx-gateway/internal/entity"
)

// defaultSyncMinutes applies when an "expire" or "every" policy names
// no interval.
const defaultSyncMinutes = 60

// syncSchedule interprets a canonical sync_state policy.
// readOnStart asks for one read at registration; interval > 0 asks for
// periodic re-reads.
func syncSchedule(policy string) (readOnStart bool, interval time.Duration) {
	switch {
	case policy == "" || policy == entity.SyncStateNone:
		return false, 0
	case policy == entity.SyncStateInit:
		return true, 0
	}

	parts := strings.SplitN(policy, " ", 2)
	minutes := defaultSyncMinutes
	if len(parts) == 2 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
			minutes = n
		}
	}
	return true, time.Duration(minutes) * time.Minute
}
