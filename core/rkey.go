package core

import "strings"

// RKey builds a namespaced key-value store key by joining prefix with parts
// using ":", e.g. RKey("sms-dispatcher", "user", "+2712345") ->
// "sms-dispatcher:user:+2712345". This is the namespacing convention the
// stateful routers use so multiple dispatchers can share one store without
// key collisions.
func RKey(prefix string, parts ...string) string {
	b := make([]string, 0, len(parts)+1)
	b = append(b, prefix)
	b = append(b, parts...)
	return strings.Join(b, ":")
}
