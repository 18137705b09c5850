package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tim-schneider/nexsync/faults"
	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
)

// Load reads the configuration document. Sources of the form
// "git+URL[#ref][//path]" are fetched from a git repository; anything else
// is a filesystem path.
func Load(source string) (*Config, error) {
	if strings.HasPrefix(source, "git+") {
		return loadFromGit(source)
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "configuration file could not be read", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "configuration is not valid YAML", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return faults.NewTypedError(faults.ValidationError, "server.base-url is required", nil)
	}
	if c.Server.Auth != nil {
		setCount := 0
		if c.Server.Auth.BasicAuth != nil {
			setCount++
		}
		if c.Server.Auth.BearerToken != nil {
			setCount++
		}
		if c.Server.Auth.CustomHeader != nil {
			setCount++
		}
		if setCount != 1 {
			return faults.NewTypedError(faults.ValidationError, "server.auth must define exactly one auth mode", nil)
		}
	}
	return nil
}

// ResourceTypeNames lists the resource types the document declares, sorted
// so runs over the same document sequence identically; the driver applies
// the dependency order on top.
func (c *Config) ResourceTypeNames() []string {
	names := make([]string, 0, len(c.Resources))
	for name := range c.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DesiredList returns the raw desired items declared for one resource
// type. Singleton types accept either a single mapping or a one-element
// sequence; collection types require a sequence of mappings. A declared
// key with a null value is an explicit empty list: the type is managed
// and nothing is desired.
func (c *Config) DesiredList(rt schema.ResourceType) ([]resource.Doc, error) {
	declared, found := c.Resources[rt.Name]
	if !found {
		return nil, nil
	}
	if declared == nil {
		return []resource.Doc{}, nil
	}

	switch typed := declared.(type) {
	case map[string]any:
		if !rt.Singleton {
			return nil, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("resources.%s must be a sequence of mappings", rt.Name),
				nil,
			)
		}
		return []resource.Doc{typed}, nil
	case []any:
		items := make([]resource.Doc, 0, len(typed))
		for idx, entry := range typed {
			doc, isDoc := entry.(map[string]any)
			if !isDoc {
				return nil, faults.NewTypedError(
					faults.ValidationError,
					fmt.Sprintf("resources.%s[%d] must be a mapping", rt.Name, idx),
					nil,
				)
			}
			items = append(items, doc)
		}
		if rt.Singleton && len(items) > 1 {
			return nil, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("resources.%s is a singleton and allows at most one document", rt.Name),
				nil,
			)
		}
		return items, nil
	default:
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("resources.%s has an unsupported shape", rt.Name),
			nil,
		)
	}
}

// LayersFor assembles the default layers for one resource type, lowest
// precedence first: Global, then the repository kind layer, then the
// repository format layer. Non-repository types receive the global layer
// only. The item document itself is appended by the driver.
func (c *Config) LayersFor(rt schema.ResourceType) []resource.Value {
	layers := []resource.Value{mapOrNil(c.Defaults.Global)}

	kind, format := repositoryKindAndFormat(rt.Name)
	if kind != "" {
		layers = append(layers, mapOrNil(c.Defaults.Type[kind]))
	}
	if format != "" {
		layers = append(layers, mapOrNil(c.Defaults.Format[format]))
	}
	return layers
}

func mapOrNil(value map[string]any) resource.Value {
	if len(value) == 0 {
		return nil
	}
	return value
}

// repositoryKindAndFormat splits "maven-proxy-repository" into its format
// and kind parts. Both are empty for non-repository types.
func repositoryKindAndFormat(name string) (kind string, format string) {
	trimmed, isRepository := strings.CutSuffix(name, "-repository")
	if !isRepository {
		return "", ""
	}
	parts := strings.Split(trimmed, "-")
	if len(parts) != 2 {
		return "", ""
	}
	switch parts[1] {
	case "hosted", "proxy", "group":
		return parts[1], parts[0]
	}
	return "", ""
}
