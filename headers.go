package confhttpd

import "strings"

// Headers is a case-insensitive, multi-value HTTP header map. Values for a
// given name preserve the order in which they were added.
type Headers map[string][]string

// Get gets the values associated with the key.
//
// The key is case insensitive and will be canonicalized by the
// `strings.ToLower()`. To use non-canonical keys, access the map directly.
func (hs Headers) Get(key string) []string {
	return hs[strings.ToLower(key)]
}

// Set sets the entries associated with the key to the values.
//
// The key is case insensitive and will be canonicalized by the
// `strings.ToLower()`. To use non-canonical keys, access the map directly.
func (hs Headers) Set(key string, values []string) {
	hs[strings.ToLower(key)] = values
}

// Delete deletes the values associated with the key.
//
// The key is case insensitive and will be canonicalized by the
// `strings.ToLower()`. To use non-canonical keys, access the map directly.
func (hs Headers) Delete(key string) {
	delete(hs, strings.ToLower(key))
}

// First tries to return the first value associated with the key. It returns ""
// if there are no values associated with the key.
//
// The key is case insensitive and will be canonicalized by the
// `strings.ToLower()`. To use non-canonical keys, access the map directly.
func (hs Headers) First(key string) string {
	if vs := hs.Get(key); len(vs) > 0 {
		return vs[0]
	}

	return ""
}

// Append appends the value to the entries associated with the key.
//
// The key is case insensitive and will be canonicalized by the
// `strings.ToLower()`. To use non-canonical keys, access the map directly.
func (hs Headers) Append(key string, value string) {
	hs.Set(key, append(hs.Get(key), value))
}

// SetFirst is a convenience for Set(key, []string{value}).
func (hs Headers) SetFirst(key string, value string) {
	hs.Set(key, []string{value})
}

// Has reports whether any value is associated with the key.
func (hs Headers) Has(key string) bool {
	_, ok := hs[strings.ToLower(key)]
	return ok
}

// Clone returns a deep copy of hs.
func (hs Headers) Clone() Headers {
	c := make(Headers, len(hs))
	for k, vs := range hs {
		cp := make([]string, len(vs))
		copy(cp, vs)
		c[k] = cp
	}
	return c
}
