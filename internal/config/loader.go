package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Format names a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

var formatsByExt = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
	".toml": FormatTOML,
}

// envRef matches ${NAME} references. A bare $NAME is left alone so URLs and
// passwords containing '$' survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFromFile reads the configuration file at path. The format follows the
// extension: .yaml, .yml, .json or .toml.
func LoadFromFile(path string) (*pkgconfig.Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := formatsByExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported config file format: %q (supported: .yaml, .yml, .json, .toml)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, format)
}

// Parse decodes a configuration document, substitutes ${NAME} environment
// references, applies defaults and validates the result.
func Parse(data []byte, format Format) (*pkgconfig.Config, error) {
	data = expandEnv(data)

	var (
		cfg pkgconfig.Config
		err error
	)
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &cfg)
	case FormatJSON:
		err = json.Unmarshal(data, &cfg)
	case FormatTOML:
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", strings.ToUpper(string(format)), err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv replaces ${NAME} with the value of the environment variable NAME.
// Unset variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(&pkgconfig.Config{})
	schema.Title = "IndexSync configuration"

	return json.MarshalIndent(schema, "", "  ")
}
