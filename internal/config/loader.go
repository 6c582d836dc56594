package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/sessionrec/internal/domain/rules"
)

const (
	envPrefix = "SESSIONREC_"
	envConfig = envPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SESSIONREC_CONFIG is set
//  3. env (prefix SESSIONREC_, flat keys only)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// SESSIONREC_NEO4J_URI -> neo4j_uri. Underscores are kept to match the
	// struct tags, so nested keys cannot be set from the environment.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	// Rule lists are decoded onto empty slices so a shorter list in the file
	// replaces the default instead of overwriting its prefix.
	cfg := *base
	cfg.Rules = rules.Config{}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.Rules = withRuleDefaults(cfg.Rules, base.Rules)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// withRuleDefaults fills every list left empty in c from def.
func withRuleDefaults(c, def rules.Config) rules.Config {
	if len(c.Priority) == 0 {
		c.Priority = def.Priority
	}
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&c.EquineMixedTriggers, def.EquineMixedTriggers)
	fill(&c.EquineMixedExclusions, def.EquineMixedExclusions)
	fill(&c.SmallAnimalTriggers, def.SmallAnimalTriggers)
	fill(&c.SmallAnimalExclusions, def.SmallAnimalExclusions)
	fill(&c.VetRoles, def.VetRoles)
	fill(&c.NurseRoles, def.NurseRoles)
	fill(&c.VetExclusions, def.VetExclusions)
	fill(&c.NurseAllowed, def.NurseAllowed)
	return c
}
