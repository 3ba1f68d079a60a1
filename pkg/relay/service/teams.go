package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/relay"
)

// TeamsFile lists the servers allowed to use the relay:
//
//	teams:
//	  - id: 42
//	    secret: 00ff...
//	    name: eu-west
type TeamsFile struct {
	Teams []TeamEntry `yaml:"teams"`
}

type TeamEntry struct {
	ID     uint64 `yaml:"id"`
	Secret string `yaml:"secret"`
	Name   string `yaml:"name"`
}

// Teams maps a team id to its secret.
type Teams map[ids.ID]relay.Secret

func LoadTeams(path string) (Teams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read teams file: %w", err)
	}
	var f TeamsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse teams file: %w", err)
	}
	out := make(Teams, len(f.Teams))
	for i, t := range f.Teams {
		if t.ID == 0 {
			return nil, fmt.Errorf("teams[%d]: id must be non-zero", i)
		}
		s, err := relay.ParseSecret(t.Secret)
		if err != nil {
			return nil, fmt.Errorf("teams[%d]: %w", i, err)
		}
		out[ids.ID(t.ID)] = s
	}
	return out, nil
}

func (t Teams) Authenticate(id ids.ID, secret relay.Secret) bool {
	want, ok := t[id]
	if !ok {
		return false
	}
	return want.Equal(secret)
}
