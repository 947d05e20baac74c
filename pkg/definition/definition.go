// Package definition loads agent definitions: markdown files whose YAML
// frontmatter configures the agent and whose body is its behavior text.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to keys missing from the frontmatter.
const (
	DefaultProvider      = "ollama"
	DefaultModel         = "qwen2.5:0.5b"
	DefaultMaxIterations = 15
)

// ErrNotFound is returned when no candidate file exists.
var ErrNotFound = errors.New("definition not found")

// Definition is a parsed agent definition.
type Definition struct {
	Name          string         `yaml:"name"`
	Provider      string         `yaml:"provider"`
	Model         string         `yaml:"model"`
	Tools         []string       `yaml:"tools"`
	MaxIterations int            `yaml:"max_iterations"`
	AutoSave      *bool          `yaml:"auto_save"`
	PromptData    map[string]any `yaml:"prompt_data"`
	Behavior      string         `yaml:"-"`
	Path          string         `yaml:"-"`
}

// SaveEnabled reports whether sessions should be saved automatically. It
// defaults to true.
func (d Definition) SaveEnabled() bool {
	return d.AutoSave == nil || *d.AutoSave
}

var delimiter = []byte("---")

// Parse splits data into frontmatter and body and decodes the frontmatter.
// A document without frontmatter is all behavior.
func Parse(data []byte) (Definition, error) {
	var def Definition
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	front, body, ok := splitFrontmatter(data)
	if ok && len(bytes.TrimSpace(front)) > 0 {
		if err := yaml.Unmarshal(front, &def); err != nil {
			return Definition{}, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}
	def.Behavior = strings.TrimSpace(string(body))
	if def.Provider == "" {
		def.Provider = DefaultProvider
	}
	if def.Model == "" {
		def.Model = DefaultModel
	}
	if def.MaxIterations <= 0 {
		def.MaxIterations = DefaultMaxIterations
	}
	return def, nil
}

func splitFrontmatter(data []byte) (front, body []byte, ok bool) {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	first, rest, found := bytes.Cut(normalized, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimSpace(first), delimiter) {
		return nil, normalized, false
	}
	for offset := 0; offset <= len(rest); {
		line, next, more := bytes.Cut(rest[offset:], []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), delimiter) {
			return rest[:offset], next, true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return nil, normalized, false
}

// Load reads the definition at path. The file stem is the name unless the
// frontmatter sets one.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Definition{}, err
	}
	def, err := Parse(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	def.Path = path
	return def, nil
}

// Resolve finds an agent definition by name or path. A name without an
// extension is looked up as <name>.md in each dir in order.
func Resolve(name string, dirs ...string) (string, error) {
	if fileExists(name) {
		return name, nil
	}
	filename := name
	if filepath.Ext(filename) == "" {
		filename += ".md"
	}
	return resolveWithFallbacks([]string{filename}, dirs)
}

// LoadSystemTemplate returns the system message template for model, looking
// for <model>.prompt and then default.prompt under <dataDir>/prompts/system_message.
// It returns "" when neither exists so the built-in template is used.
func LoadSystemTemplate(model, dataDir string) (string, error) {
	if dataDir == "" {
		return "", nil
	}
	dir := filepath.Join(dataDir, "prompts", "system_message")
	var names []string
	if model != "" {
		names = append(names, strings.ReplaceAll(model, "/", "_")+".prompt")
	}
	names = append(names, "default.prompt")
	path, err := resolveWithFallbacks(names, []string{dir})
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolveWithFallbacks tries each filename in every dir before moving on to
// the next filename.
func resolveWithFallbacks(filenames, dirs []string) (string, error) {
	for _, filename := range filenames {
		for _, dir := range dirs {
			candidate := filepath.Join(dir, filename)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %v in %v", ErrNotFound, filenames, dirs)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
