package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/quintagroup/odoorpc/pkg/errors"
)

// envRef matches a ${VAR} environment reference inside a stored file.
var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads a YAML file into out. Every ${VAR} reference in the file is
// resolved from the process environment before decoding, so stored client
// configurations and session files never need to carry literal secrets.
// An unset variable resolves to an empty string.
func Load(path string, out interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "cannot read configuration file")
	}

	expanded := envRef.ReplaceAllStringFunc(string(data), func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "malformed configuration file").
			WithDetail("path", path)
	}
	return nil
}

// Save writes a value as a YAML file readable only by the owner. Session
// files hold credentials, so the restrictive mode applies to every stored
// file rather than only those known to be sensitive.
func Save(path string, in interface{}) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "cannot encode configuration")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "cannot write configuration file").
			WithDetail("path", path)
	}
	return nil
}
