package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// configFilePermissions is the standard permission mode for config files.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the config file content written the first time a key is
// set. Every option appears commented out with its default so users can
// discover them without reading docs. Later edits are line-level, so user
// comments survive.
const configTemplate = `# brainmaps-go configuration

[auth]
# client_secret_file = ""
# token_path = ""

[api]
# base_url = "https://brainmaps.googleapis.com"
# default_volume = "project:dataset:volume"
# mesh_name = "mcws_quad1e6"

[fetch]
# workers = 8
# batch_size = 100
# max_retries = 3
# retry_backoff = "500ms"
# requests_per_second = 0
# segment_chunk_size = 10000

[network]
# timeout = "60s"
# user_agent = ""

[logging]
# log_level = "info"
`

// numericKeys are written bare; every other key is a quoted string.
var numericKeys = map[string]bool{
	"fetch.workers": true, "fetch.batch_size": true, "fetch.max_retries": true,
	"fetch.requests_per_second": true, "fetch.segment_chunk_size": true,
}

// SetKey sets a dotted "section.key" to value in the config file at path,
// creating the file from the default template if it does not exist. The
// resulting file is parsed and validated before it replaces the old one, so
// a bad value leaves the file untouched.
func SetKey(path, dottedKey, value string) error {
	if !knownKeys[dottedKey] {
		return unknownKeyError(dottedKey)
	}

	formatted, err := formatTOMLValue(dottedKey, value)
	if err != nil {
		return err
	}

	content := configTemplate

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		content = string(data)
	case !os.IsNotExist(err):
		return fmt.Errorf("reading config file: %w", err)
	}

	section, key, _ := strings.Cut(dottedKey, ".")
	updated := setKeyInSection(content, section, key, key+" = "+formatted)

	if err := validateContent(updated); err != nil {
		return err
	}

	slog.Info("setting config key",
		slog.String("path", path),
		slog.String("key", dottedKey),
	)

	return atomicWriteFile(path, []byte(updated))
}

func validateContent(content string) error {
	cfg := DefaultConfig()

	md, err := toml.Decode(content, cfg)
	if err != nil {
		return fmt.Errorf("parsing updated config: %w", err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return err
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// setKeyInSection replaces the key's line inside [section], or inserts it
// after the section header. A missing section is appended.
func setKeyInSection(content, section, key, newLine string) string {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	header := "[" + section + "]"

	headerLine := -1

	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			headerLine = i

			break
		}
	}

	if headerLine < 0 {
		lines = append(lines, "", header, newLine)

		return strings.Join(lines, "\n") + "\n"
	}

	end := len(lines)

	for i := headerLine + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "[") {
			end = i

			break
		}
	}

	for i := headerLine + 1; i < end; i++ {
		if isKeyLine(lines[i], key) {
			lines[i] = newLine

			return strings.Join(lines, "\n") + "\n"
		}
	}

	inserted := make([]string, 0, len(lines)+1)
	inserted = append(inserted, lines[:headerLine+1]...)
	inserted = append(inserted, newLine)
	inserted = append(inserted, lines[headerLine+1:]...)

	return strings.Join(inserted, "\n") + "\n"
}

// isKeyLine reports whether line assigns key. Commented-out defaults do not
// count.
func isKeyLine(line, key string) bool {
	name, _, ok := strings.Cut(strings.TrimSpace(line), "=")

	return ok && strings.TrimSpace(name) == key
}

// formatTOMLValue renders value as a TOML literal for dottedKey.
func formatTOMLValue(dottedKey, value string) (string, error) {
	if !numericKeys[dottedKey] {
		return strconv.Quote(value), nil
	}

	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return "", fmt.Errorf("%s: expected a number, got %q", dottedKey, value)
	}

	return value, nil
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it over path, so a crash never leaves a partial config.
// Parent directories are created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
