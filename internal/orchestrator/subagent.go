// Package orchestrator implements the Orchestrator (spec §4.6, component
// C7): request classification and routing to the agent loop, a single
// sub-agent, or a fan-out of sub-agents, loaded once at startup from static
// YAML-frontmatter documents.
package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SubAgent is one static sub-agent configuration (spec §4.6: "static
// documents with YAML frontmatter declaring {name, model, tools,
// system_prompt}").
type SubAgent struct {
	Name         string   `yaml:"name"`
	Model        string   `yaml:"model"`
	Tools        []string `yaml:"tools"`
	SystemPrompt string   `yaml:"-"`
}

// subAgentFrontmatter mirrors SubAgent's YAML fields without SystemPrompt,
// which is populated from the document body rather than the frontmatter.
type subAgentFrontmatter struct {
	Name  string   `yaml:"name"`
	Model string   `yaml:"model"`
	Tools []string `yaml:"tools"`
}

const frontmatterDelim = "---"

// LoadSubAgents reads every `*.md` file in dir as a YAML-frontmatter +
// Markdown-body sub-agent document and returns them keyed by name (spec
// §4.6: "loaded once at startup into an in-memory registry").
func LoadSubAgents(dir string) (map[string]SubAgent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read sub-agent dir %s: %w", dir, err)
	}
	out := make(map[string]SubAgent, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: read %s: %w", path, err)
		}
		sa, err := parseSubAgent(data)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: parse %s: %w", path, err)
		}
		out[sa.Name] = sa
	}
	return out, nil
}

func parseSubAgent(data []byte) (SubAgent, error) {
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return SubAgent{}, err
	}
	var fm subAgentFrontmatter
	if err := yaml.Unmarshal(front, &fm); err != nil {
		return SubAgent{}, fmt.Errorf("decode frontmatter: %w", err)
	}
	if fm.Name == "" {
		return SubAgent{}, fmt.Errorf("frontmatter missing required name field")
	}
	return SubAgent{
		Name:         fm.Name,
		Model:        fm.Model,
		Tools:        fm.Tools,
		SystemPrompt: strings.TrimSpace(body),
	}, nil
}

func splitFrontmatter(data []byte) (front, body []byte, err error) {
	s := bytes.TrimLeft(data, "\n")
	if !bytes.HasPrefix(s, []byte(frontmatterDelim)) {
		return nil, nil, fmt.Errorf("document does not start with %q frontmatter delimiter", frontmatterDelim)
	}
	rest := s[len(frontmatterDelim):]
	idx := bytes.Index(rest, []byte("\n"+frontmatterDelim))
	if idx < 0 {
		return nil, nil, fmt.Errorf("unterminated frontmatter block")
	}
	front = bytes.TrimSpace(rest[:idx])
	body = rest[idx+len(frontmatterDelim)+1:]
	return front, body, nil
}
