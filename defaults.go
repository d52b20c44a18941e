package rcache

import "time"

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// normalizeTimeout turns a call timeout into a store TTL. write=false means
// nothing must be stored. ttl 0 means no expiry.
func normalizeTimeout(timeout, def time.Duration) (ttl time.Duration, write bool) {
	if timeout == DefaultTimeout {
		timeout = def
	}
	switch {
	case timeout < 0:
		return 0, false
	case timeout == 0:
		return 0, true
	}
	ttl = timeout.Truncate(time.Second)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl, true
}

// dedupe keeps the first occurrence of every element.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
