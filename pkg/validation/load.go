package validation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	RuleSets []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Rules []struct {
			ID       string `yaml:"id"`
			Severity string `yaml:"severity"`
			Context  string `yaml:"context"`
			Require  string `yaml:"require"`
			NotEmpty bool   `yaml:"notEmpty"`
			Pattern  string `yaml:"pattern"`
			Message  string `yaml:"message"`
		} `yaml:"rules"`
	} `yaml:"ruleSets"`
}

// LoadRuleSets reads rule sets from YAML.
func LoadRuleSets(r io.Reader) ([]*RuleSet, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	var sets []*RuleSet
	for _, def := range file.RuleSets {
		if def.ID == "" {
			return nil, fmt.Errorf("rule set without id")
		}
		rules := make([]Rule, 0, len(def.Rules))
		for _, rd := range def.Rules {
			sev, err := ParseSeverity(rd.Severity)
			if err != nil {
				return nil, fmt.Errorf("rule set %s, rule %s: %w", def.ID, rd.ID, err)
			}
			rules = append(rules, Rule{
				ID:       rd.ID,
				Severity: sev,
				Message:  rd.Message,
				Context:  rd.Context,
				Require:  rd.Require,
				NotEmpty: rd.NotEmpty,
				Pattern:  rd.Pattern,
			})
		}
		rs, err := NewRuleSet(def.ID, def.Name, rules...)
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return sets, nil
}

// LoadRuleFile reads rule sets from a YAML file.
func LoadRuleFile(path string) ([]*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	defer f.Close()
	return LoadRuleSets(f)
}

// RegistryWithFiles returns a registry factory that starts from the
// built-in rule sets and adds every rule set found in the given files. A
// directory adds all *.yaml and *.yml files inside it.
func RegistryWithFiles(paths ...string) func() (Registry, error) {
	return func() (Registry, error) {
		r, err := newBuiltinRegistry()
		if err != nil {
			return nil, err
		}

		files, err := expandRulePaths(paths)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			sets, err := LoadRuleFile(path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			for _, rs := range sets {
				r.RegisterRuleSet(rs)
			}
		}
		return r, nil
	}
}

func expandRulePaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("rule path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	return files, nil
}
