package env

import "os"

// Get retrieves an environment variable. An empty value counts as unset.
func Get(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// GetOrDefault retrieves an environment variable with a default value
func GetOrDefault(key, defaultValue string) string {
	if value, ok := Get(key); ok {
		return value
	}
	return defaultValue
}

// Expand replaces ${NAME} and $NAME references in s with their values.
func Expand(s string) string {
	return os.ExpandEnv(s)
}

// ExpandMap returns a copy of m with every value expanded.
func ExpandMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Expand(v)
	}
	return out
}
