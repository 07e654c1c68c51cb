package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultLookback time.Duration = 1 * time.Minute

// Reads the starttime/endtime query pair.
// Start accepts RFC3339 or a negative offset from now (unparsable offsets fall back to the last minute).
// End accepts RFC3339 or "now".
func parseWindow(clientRequest *http.Request, now time.Time) (start, end time.Time, err error) {
	rawStartTime := clientRequest.FormValue("starttime")
	switch {
	case rawStartTime == "":
		start = now.Add(-defaultLookback)
	case rawStartTime[0] == '-' || rawStartTime[0] == '+':
		offset, parseErr := time.ParseDuration(rawStartTime)
		if parseErr != nil {
			start = now.Add(-defaultLookback)
			break
		}
		if offset > 0 {
			err = fmt.Errorf("start time %q is in the future", rawStartTime)
			return
		}
		start = now.Add(offset)
	default:
		start, err = time.Parse(time.RFC3339Nano, rawStartTime)
		if err != nil {
			err = fmt.Errorf("invalid start time: %w", err)
			return
		}
	}

	rawEndTime := clientRequest.FormValue("endtime")
	if rawEndTime == "" || strings.EqualFold(rawEndTime, "now") {
		end = now
		return
	}
	end, err = time.Parse(time.RFC3339Nano, rawEndTime)
	if err != nil {
		err = fmt.Errorf("invalid end time: %w", err)
		return
	}
	return
}

// Namespace components from the path remainder after prefix, nil for none
func parseNamespace(path, prefix string) (namespace []string) {
	raw := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if raw == "" {
		return
	}
	namespace = strings.Split(raw, "/")
	return
}
