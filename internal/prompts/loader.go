// Package prompts holds the LLM prompt templates used for reranking, requirement extraction and
// assembly. Each JSON file maps template names to text; files are embedded at compile time and
// parsed once on first use.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var templateFS embed.FS

var placeholderPattern = regexp.MustCompile(`\{\{\.([A-Za-z]+)\}\}`)

// catalog is the parsed set of template files, keyed by file then template name
type catalog struct {
	once  sync.Once
	files map[string]map[string]string
	err   error
}

var shared = &catalog{}

func (c *catalog) load() error {
	c.once.Do(func() {
		c.files = make(map[string]map[string]string)
		names, err := fs.Glob(templateFS, "*.json")
		if err != nil {
			c.err = err
			return
		}
		for _, name := range names {
			data, err := templateFS.ReadFile(name)
			if err != nil {
				c.err = fmt.Errorf("failed to read prompt file %s: %w", name, err)
				return
			}
			var entries map[string]string
			if err := json.Unmarshal(data, &entries); err != nil {
				c.err = fmt.Errorf("failed to parse prompt file %s: %w", name, err)
				return
			}
			c.files[name] = entries
		}
	})
	return c.err
}

func (c *catalog) file(filename string) (map[string]string, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	entries, ok := c.files[filename]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", filename)
	}
	return entries, nil
}

// Get returns the template named key from filename (e.g. "assembly.json", "system")
func Get(filename, key string) (string, error) {
	entries, err := shared.file(filename)
	if err != nil {
		return "", err
	}
	text, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return text, nil
}

// MustGet is Get for templates that ship with the binary; a miss is a programming error.
func MustGet(filename, key string) string {
	text, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return text
}

// List returns the template names in filename, sorted
func List(filename string) ([]string, error) {
	entries, err := shared.file(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Placeholders lists the distinct {{.Name}} placeholders of template in order of first use
func Placeholders(template string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Format substitutes {{.Name}} placeholders from data in a single pass. Placeholders without a
// value are left as written; substituted values are never rescanned.
func Format(template string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(ph string) string {
		if v, ok := data[strings.TrimSuffix(strings.TrimPrefix(ph, "{{."), "}}")]; ok {
			return v
		}
		return ph
	})
}

// FormatStrict is Format but fails when the template names a placeholder data does not provide
func FormatStrict(template string, data map[string]string) (string, error) {
	var missing []string
	for _, name := range Placeholders(template) {
		if _, ok := data[name]; !ok {
			missing = append(missing, "{{."+name+"}}")
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt placeholders without a value: %s", strings.Join(missing, ", "))
	}
	return Format(template, data), nil
}
