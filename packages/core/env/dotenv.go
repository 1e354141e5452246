package env

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultDotEnvFile is read by LoadDefault.
const DefaultDotEnvFile = ".env"

// ParseDotEnv reads KEY=value lines from path. Blank lines and lines starting
// with # are skipped; a value wrapped in matching single or double quotes is
// unwrapped. Nothing is exported to the process environment.
func ParseDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return vars, nil
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	first, last := v[0], v[len(v)-1]
	if first == last && (first == '"' || first == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

// Load parses path and exports each variable that is not already set, so
// the real environment always wins over the file.
func Load(path string) (map[string]string, error) {
	vars, err := ParseDotEnv(path)
	if err != nil {
		return nil, err
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); !set {
			_ = os.Setenv(k, v)
		}
	}
	return vars, nil
}

// LoadDefault loads DefaultDotEnvFile when it exists. A missing file is not
// an error.
func LoadDefault() error {
	_, err := Load(DefaultDotEnvFile)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
