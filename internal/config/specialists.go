package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed specialists.yaml
var defaultSpecialists []byte

// Profile pairs an AI persona with the model tiers used for a project's specialist tag.
type Profile struct {
	Key                 string `yaml:"-"`
	DisplayName         string `yaml:"display_name"`
	AnalysisModel       string `yaml:"analysis_model"`
	ChatModel           string `yaml:"chat_model"`
	AnalysisInstruction string `yaml:"analysis_instruction"`
}

// Specialists is the catalogue of profiles plus the models that do not depend on a profile.
type Specialists struct {
	Default       string              `yaml:"default"`
	ProposalModel string              `yaml:"proposal_model"`
	DocumentModel string              `yaml:"document_model"`
	Profiles      map[string]*Profile `yaml:"profiles"`
}

// LoadSpecialists reads the catalogue from path, or the built-in one when path is empty.
func LoadSpecialists(path string) (*Specialists, error) {
	raw := defaultSpecialists
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read specialists file: %w", err)
		}
		raw = b
	}
	return ParseSpecialists(raw)
}

// ParseSpecialists decodes and validates a YAML catalogue.
func ParseSpecialists(raw []byte) (*Specialists, error) {
	var s Specialists
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse specialists: %w", err)
	}
	if len(s.Profiles) == 0 {
		return nil, fmt.Errorf("specialists: no profiles defined")
	}
	if s.ProposalModel == "" || s.DocumentModel == "" {
		return nil, fmt.Errorf("specialists: proposal_model and document_model are required")
	}
	for key, p := range s.Profiles {
		if p == nil {
			return nil, fmt.Errorf("specialists: profile %q is empty", key)
		}
		p.Key = key
		p.AnalysisInstruction = strings.TrimSpace(p.AnalysisInstruction)
		if p.AnalysisModel == "" || p.ChatModel == "" {
			return nil, fmt.Errorf("specialists: profile %q needs analysis_model and chat_model", key)
		}
		if p.DisplayName == "" {
			p.DisplayName = key
		}
	}
	if s.Default == "" {
		s.Default = "general"
	}
	if _, ok := s.Profiles[s.Default]; !ok {
		return nil, fmt.Errorf("specialists: default profile %q not defined", s.Default)
	}
	return &s, nil
}

// Profile returns the profile registered under key.
func (s *Specialists) Profile(key string) (*Profile, bool) {
	p, ok := s.Profiles[key]
	return p, ok
}

// Keys lists the profile keys in a stable order.
func (s *Specialists) Keys() []string {
	keys := make([]string, 0, len(s.Profiles))
	for k := range s.Profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
