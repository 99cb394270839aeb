package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	KeyID  string `mapstructure:"key_id,omitempty"`
	Secret string `mapstructure:"secret,omitempty"`

	// Endpoint for S3-compatible services (MinIO, etc.)
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

// ParseParams decodes the free-form target params into Params.
func ParseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if len(params) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// setupStatements returns the statements that prepare a fresh session:
// extensions first, then settings (sorted by key), then secrets.
func (p *Params) setupStatements() ([]string, error) {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, fmt.Sprintf("INSTALL %s", ext), fmt.Sprintf("LOAD %s", ext))
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quoteLiteral(p.Settings[k])))
	}

	for i, s := range p.Secrets {
		stmt, err := s.createStatement(fmt.Sprintf("sqlstage_secret_%d", i))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (s SecretConfig) createStatement(name string) (string, error) {
	if s.Type == "" {
		return "", fmt.Errorf("secret %s: type is required", name)
	}

	opts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	if s.Region != "" {
		opts = append(opts, "REGION "+quoteLiteral(s.Region))
	}
	if s.KeyID != "" {
		opts = append(opts, "KEY_ID "+quoteLiteral(s.KeyID))
	}
	if s.Secret != "" {
		opts = append(opts, "SECRET "+quoteLiteral(s.Secret))
	}
	if s.Endpoint != "" {
		opts = append(opts, "ENDPOINT "+quoteLiteral(s.Endpoint))
	}
	if s.URLStyle != "" {
		opts = append(opts, "URL_STYLE "+quoteLiteral(s.URLStyle))
	}
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}

	switch scope := s.Scope.(type) {
	case nil:
	case string:
		opts = append(opts, "SCOPE "+quoteLiteral(scope))
	case []any:
		for _, v := range scope {
			opts = append(opts, "SCOPE "+quoteLiteral(fmt.Sprint(v)))
		}
	case []string:
		for _, v := range scope {
			opts = append(opts, "SCOPE "+quoteLiteral(v))
		}
	default:
		return "", fmt.Errorf("secret %s: unsupported scope type %T", name, s.Scope)
	}

	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", name, strings.Join(opts, ", ")), nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
