package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads path plus every file it includes, applies defaults to keys the
// files leave unset, and validates the result. Included files are merged
// depth-first before the including file, so the including file wins.
func Load(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

// load also returns the absolute paths of every file it merged.
func load(path string) (*Config, []string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, fmt.Errorf("config path is empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	res := &includeResolver{done: make(map[string]bool)}
	if err := res.visit(root); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range res.order {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, res.order, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	explicit := make(keySet)
	for _, key := range v.AllKeys() {
		explicit.mark(key)
	}
	cfg.applyDefaults(explicit)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

// includeResolver flattens the include graph into merge order. Files reached
// twice through different parents are merged once, at their first position.
type includeResolver struct {
	chain []string
	done  map[string]bool
	order []string
}

func (r *includeResolver) visit(path string) error {
	path = filepath.Clean(path)
	for _, p := range r.chain {
		if p == path {
			return fmt.Errorf("config include cycle: %s", strings.Join(append(r.chain, path), " -> "))
		}
	}
	if r.done[path] {
		return nil
	}
	includes, err := readIncludes(path)
	if err != nil {
		return fmt.Errorf("read includes of %s: %w", path, err)
	}
	r.chain = append(r.chain, path)
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := r.visit(inc); err != nil {
			return err
		}
	}
	r.chain = r.chain[:len(r.chain)-1]
	r.done[path] = true
	r.order = append(r.order, path)
	return nil
}

func readIncludes(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var out []string
	for _, inc := range v.GetStringSlice("include") {
		if inc = strings.TrimSpace(inc); inc != "" {
			out = append(out, inc)
		}
	}
	return out, nil
}
