// Package session stores named connection sessions in a YAML file so a
// saved server/database/login triple can be reused across invocations.
package session

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/quintagroup/odoorpc/pkg/config"
	"github.com/quintagroup/odoorpc/pkg/errors"
)

// Session is one saved connection identity.
type Session struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Protocol string `yaml:"protocol" json:"protocol"`
	Database string `yaml:"database" json:"database"`
	Login    string `yaml:"login" json:"login"`
	// Password is stored as given; prefer ${VAR} references resolved by
	// the config loader over literal secrets.
	Password string `yaml:"password" json:"password"`
}

// Store reads and writes a named-session file.
type Store struct {
	path string
}

// store is the file layout.
type store struct {
	Sessions map[string]Session `yaml:"sessions"`
}

// DefaultPath returns the session file location under the user home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSession, "cannot locate home directory")
	}
	return filepath.Join(home, ".odoorpc", "sessions.yaml"), nil
}

// NewStore creates a store over the given file path. An empty path selects
// the default location.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{path: path}, nil
}

// load reads the file; a missing file is an empty store.
func (s *Store) load() (*store, error) {
	data := &store{Sessions: make(map[string]Session)}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return data, nil
	}
	if err := config.Load(s.path, data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSession, "cannot read session file")
	}
	if data.Sessions == nil {
		data.Sessions = make(map[string]Session)
	}
	return data, nil
}

// save writes the file, creating the parent directory on first use.
func (s *Store) save(data *store) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSession, "cannot create session directory")
	}
	if err := config.Save(s.path, data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSession, "cannot write session file")
	}
	return nil
}

// Get returns one saved session by name.
func (s *Store) Get(name string) (Session, error) {
	data, err := s.load()
	if err != nil {
		return Session{}, err
	}
	sess, ok := data.Sessions[name]
	if !ok {
		return Session{}, errors.Newf(errors.ErrorTypeSession, "no session named %q", name)
	}
	return sess, nil
}

// Save stores a session under a name, overwriting any previous one.
func (s *Store) Save(name string, sess Session) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	data.Sessions[name] = sess
	return s.save(data)
}

// Remove deletes a saved session.
func (s *Store) Remove(name string) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data.Sessions[name]; !ok {
		return errors.Newf(errors.ErrorTypeSession, "no session named %q", name)
	}
	delete(data.Sessions, name)
	return s.save(data)
}

// List returns the sorted names of all saved sessions.
func (s *Store) List() ([]string, error) {
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data.Sessions))
	for name := range data.Sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ClientConfig converts a saved session into a client configuration.
func (sess Session) ClientConfig() *config.ClientConfig {
	cfg := config.NewClientConfig(sess.Host, sess.Port)
	if sess.Protocol != "" {
		cfg.Connection.Protocol = sess.Protocol
	}
	cfg.Connection.Database = sess.Database
	cfg.Connection.Login = sess.Login
	cfg.Connection.Password = sess.Password
	return cfg
}
