package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load parses and validates a prompt definition. The file is markdown
// with YAML frontmatter; a missing system_template falls back to the
// markdown body.
func Load(source string, data []byte) (*Prompt, error) {
	config, body, err := parseYAMLWithFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	if strings.TrimSpace(config.SystemTemplate) == "" {
		config.SystemTemplate = strings.TrimSpace(body)
	}
	if strings.TrimSpace(config.SystemTemplate) == "" && strings.TrimSpace(config.UserTemplate) == "" {
		return nil, fmt.Errorf("prompt %s missing templates", source)
	}
	if strings.TrimSpace(config.Slug) == "" {
		return nil, fmt.Errorf("prompt %s missing slug", source)
	}

	return &Prompt{Config: config, Source: source}, nil
}

// LoadFromDir reads all prompt files (.md with YAML frontmatter) from a
// directory, letting deployments override the embedded set.
func LoadFromDir(dir string) ([]*Prompt, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, path := range entries {
		data, err := os.ReadFile(path) // #nosec G304 -- Prompt path is operator-provided
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", path, err)
		}
		prompt, err := Load(path, data)
		if err != nil {
			return nil, err
		}
		results = append(results, prompt)
	}
	return results, nil
}

// Render substitutes {{variable}} placeholders in both templates.
func (p *Prompt) Render(vars map[string]string) (system, user string) {
	if p == nil {
		return "", ""
	}
	return applyVars(p.Config.SystemTemplate, vars), applyVars(p.Config.UserTemplate, vars)
}

func applyVars(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return strings.TrimSpace(result)
}

func parseYAMLWithFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", fmt.Errorf("empty prompt")
	}

	lines := bufio.NewScanner(bytes.NewReader(trimmed))
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		frontmatter []string
		body        []string
		inFront     bool
		headerSeen  bool
	)

	for lines.Scan() {
		line := lines.Text()
		switch {
		case line == "---" && !headerSeen:
			headerSeen = true
			inFront = true
		case line == "---" && inFront:
			inFront = false
		case inFront:
			frontmatter = append(frontmatter, line)
		default:
			body = append(body, line)
		}
	}
	if err := lines.Err(); err != nil {
		return Config{}, "", err
	}
	if inFront {
		return Config{}, "", fmt.Errorf("unterminated frontmatter")
	}

	var config Config
	if len(frontmatter) > 0 {
		if err := yaml.Unmarshal([]byte(strings.Join(frontmatter, "\n")), &config); err != nil {
			return Config{}, "", err
		}
	}

	return config, strings.Join(body, "\n"), nil
}
