package saraAuth

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvGuardSecret = "SARA_GUARD_SECRET"
	EnvAudienceURL = "SARA_AUDIENCE_URL"
)

// KeysConfig points at key material. Inline PEM wins over a file path.
type KeysConfig struct {
	PrivateKeyFile  string `yaml:"private_key_file"`
	PublicKeyFile   string `yaml:"public_key_file"`
	GuardSecretFile string `yaml:"guard_secret_file"`
	PrivateKeyPEM   string `yaml:"private_key_pem"`
	PublicKeyPEM    string `yaml:"public_key_pem"`
}

// RedisConfig is the connection section used by the bundled commands.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig selects the durable subject backend used by the bundled
// commands: "postgres", "sqlite", "mongo" or "bolt". The same backend holds
// the ledger unless Ledger is "redis".
type StorageConfig struct {
	Backend  string `yaml:"backend"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
	Ledger   string `yaml:"ledger"`
}

// FileConfig is the on-disk layout read by [LoadConfigFile].
type FileConfig struct {
	Config  `yaml:",inline"`
	Keys    KeysConfig    `yaml:"keys"`
	Redis   RedisConfig   `yaml:"redis"`
	Storage StorageConfig `yaml:"storage"`
}

// LoadConfigFile reads a YAML file over [DefaultConfig], resolves key
// material relative to the file and applies environment overrides.
// The result is not validated; Build does that. SQLite URI DSNs such as
// file::memory: must be quoted in YAML.
func LoadConfigFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	return parseConfigFile(data, filepath.Dir(path), os.LookupEnv)
}

func parseConfigFile(data []byte, baseDir string, lookupEnv func(string) (string, bool)) (FileConfig, error) {
	fc := FileConfig{
		Config: defaultConfig(),
		Redis:  RedisConfig{Addr: "127.0.0.1:6379"},
		Storage: StorageConfig{
			Backend: "sqlite",
			DSN:     "sara.db",
			Ledger:  "backend",
		},
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}

	var err error
	if fc.Token.PrivateKey, err = readKeyMaterial(fc.Keys.PrivateKeyPEM, fc.Keys.PrivateKeyFile, baseDir); err != nil {
		return FileConfig{}, fmt.Errorf("private key: %w", err)
	}
	if fc.Token.PublicKey, err = readKeyMaterial(fc.Keys.PublicKeyPEM, fc.Keys.PublicKeyFile, baseDir); err != nil {
		return FileConfig{}, fmt.Errorf("public key: %w", err)
	}
	if fc.Token.GuardSecret, err = readKeyMaterial("", fc.Keys.GuardSecretFile, baseDir); err != nil {
		return FileConfig{}, fmt.Errorf("guard secret: %w", err)
	}
	fc.Token.GuardSecret = bytes.TrimSpace(fc.Token.GuardSecret)

	if v, ok := lookupEnv(EnvGuardSecret); ok && v != "" {
		fc.Token.GuardSecret = []byte(v)
	}
	if v, ok := lookupEnv(EnvAudienceURL); ok && v != "" {
		fc.Token.Audience = v
	}

	return fc, nil
}

func readKeyMaterial(inline, path, baseDir string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return os.ReadFile(path)
}
