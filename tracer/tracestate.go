// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package tracer

import (
	"strings"

	"github.com/tracemesh/tracemesh/internal/log"
)

// maxTracestateRecommendedLength is the W3C-recommended (SHOULD, not MUST)
// upper bound on a rendered tracestate header.
const maxTracestateRecommendedLength = 512

// TracestateHandler is invoked at most once, for the first entry whose key
// equals the configured vendor key, with that entry's value. Returning false
// halts scanning early; any entries not yet visited are preserved verbatim
// in the "others" string that ScanTracestate returns.
type TracestateHandler func(value string) (cont bool)

// ScanTracestate parses a W3C tracestate header, isolating the vendor's
// entry. OWS (spaces/tabs) is trimmed around keys and values. Duplicate
// vendor keys: the first match is handed to handle; later occurrences of the
// same key are demoted into the returned "others" string, unmodified.
func ScanTracestate(header, vendorKey string, handle TracestateHandler) (others string) {
	if header == "" {
		return ""
	}
	var kept []string
	found := false
	halted := false
	for _, raw := range strings.Split(header, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if halted {
			kept = append(kept, entry)
			continue
		}
		key, value, ok := splitTracestateEntry(entry)
		if ok && !found && key == vendorKey {
			found = true
			if handle != nil && !handle(value) {
				halted = true
			}
			continue
		}
		kept = append(kept, entry)
	}
	return strings.Join(kept, ",")
}

func splitTracestateEntry(entry string) (key, value string, ok bool) {
	i := strings.IndexByte(entry, '=')
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(entry[:i])
	value = strings.TrimSpace(entry[i+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// ParseTracestate is a convenience wrapper over ScanTracestate returning the
// vendor's value directly, alongside whether it was found.
func ParseTracestate(header, vendorKey string) (value, others string, found bool) {
	others = ScanTracestate(header, vendorKey, func(v string) bool {
		value = v
		found = true
		return true
	})
	return value, others, found
}

// WriteTracestate renders a tracestate header with the vendor's entry first,
// followed by others (if any), matching SPEC_FULL §4.3: "Writer emits
// key=thisValue first, followed by ,otherEntries if any." The 512-char
// recommendation is not enforced, only logged.
func WriteTracestate(vendorKey, value, others string) string {
	out := vendorKey + "=" + value
	if others != "" {
		out += "," + others
	}
	if len(out) > maxTracestateRecommendedLength {
		log.Warn("tracestate header is %d characters, exceeding the recommended %d", len(out), maxTracestateRecommendedLength)
	}
	return out
}
