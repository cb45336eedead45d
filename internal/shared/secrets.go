package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=value pairs from the .env file at path into the process environment.
//
// Variables that are already set win over the file. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// WriteEnv merges values into the .env file at path, keeping unrelated keys.
func WriteEnv(path string, values map[string]string) error {
	existing, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		existing = map[string]string{}
	}
	for k, v := range values {
		existing[k] = v
	}
	if err := godotenv.Write(existing, path); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// RequireEnv returns the value of the environment variable or [ErrMissingSecret].
func RequireEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSecret, key)
	}
	return v, nil
}

var cookieToken = regexp.MustCompile(`^[\w\-.%]+`)

type namedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CookieValue extracts the value of one cookie from raw browser input.
//
// raw may be a "k=v; k2=v2" header string, a JSON array of {"name","value"} objects
// exported by a browser extension, or the bare value itself. The bare value is
// returned unchanged when key does not occur in raw.
func CookieValue(key, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if strings.HasPrefix(raw, "[") {
		var cookies []namedCookie
		if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
			return "", false
		}
		for _, c := range cookies {
			if c.Name == key {
				return c.Value, true
			}
		}
		return "", false
	}

	idx := strings.Index(raw, key+"=")
	if idx == -1 {
		if strings.Contains(raw, "=") {
			return "", false
		}
		return raw, true
	}

	value := cookieToken.FindString(raw[idx+len(key)+1:])
	return value, value != ""
}
