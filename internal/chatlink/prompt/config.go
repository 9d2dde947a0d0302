package prompt

// Config describes a prompt definition loaded from a markdown file with
// YAML frontmatter.
type Config struct {
	Slug           string `yaml:"slug" json:"slug"`
	Name           string `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string `yaml:"version,omitempty" json:"version,omitempty"`
	SystemTemplate string `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate   string `yaml:"user_template,omitempty" json:"user_template,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}
