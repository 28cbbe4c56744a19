// Package configuration loads the scrubber's resolved options from one or
// more layered YAML files: struct fields tagged for YAML, a Load function
// that layers files with later ones overriding earlier ones, and defaulting
// applied after unmarshalling.
package configuration

import (
	"github.com/pkg/errors"

	"github.com/arrowheadlabs/scrubfs/internal/encoding"
	"github.com/arrowheadlabs/scrubfs/internal/ratelimit"
	"github.com/arrowheadlabs/scrubfs/internal/scrub"
	"github.com/arrowheadlabs/scrubfs/internal/walk"
)

// Configuration is the root configuration document.
type Configuration struct {
	Storage   Storage   `yaml:"storage"`
	Operation Operation `yaml:"operation"`
	Logging   Logging   `yaml:"logging"`
}

// Storage configures the path walker and metadata store.
type Storage struct {
	Path     []string       `yaml:"path"`
	Xdev     bool           `yaml:"xdev"`
	Filter   []string       `yaml:"filter"`
	Metadata MetadataConfig `yaml:"metadata"`
}

// MetadataConfig names the on-disk metadata snapshot and its sidecar
// digest file.
type MetadataConfig struct {
	DB       string `yaml:"db"`
	DBParity string `yaml:"db_parity"`
}

// Operation configures the content digest, read block size, skip cooldown,
// and rate limits.
type Operation struct {
	Checksum     string    `yaml:"checksum"`
	ReadBlock    int       `yaml:"read_block"`
	SkipForHours float64   `yaml:"skip_for_hours"`
	RateLimit    RateLimit `yaml:"rate_limit"`
}

// RateLimit holds the raw specification strings for the scan and read
// rate limiters, parsed via internal/ratelimit.ParseSpec.
type RateLimit struct {
	Scan string `yaml:"scan"`
	Read string `yaml:"read"`
}

// Logging configures the ambient logging level.
type Logging struct {
	Level string `yaml:"level"`
}

// defaultReadBlock is the default streaming chunk size.
const defaultReadBlock = 65536

// Load reads and layers each configuration file in paths, in order, with
// later files overriding fields present in earlier ones: each file is
// decoded into the same pre-populated struct, so a field (including one in
// a nested section) that a later file omits keeps its earlier value, while
// a list that a later file sets replaces the earlier list whole. It then
// applies defaults.
func Load(paths []string) (*Configuration, error) {
	if len(paths) == 0 {
		return nil, errors.New("no configuration file specified")
	}

	cfg := &Configuration{}
	for _, path := range paths {
		if err := encoding.LoadAndUnmarshalYAML(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "unable to load configuration file %q", path)
		}
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Configuration) {
	if cfg.Storage.Metadata.DBParity == "" && cfg.Storage.Metadata.DB != "" {
		cfg.Storage.Metadata.DBParity = cfg.Storage.Metadata.DB + ".check"
	}
	if cfg.Operation.ReadBlock == 0 {
		cfg.Operation.ReadBlock = defaultReadBlock
	}
	if cfg.Operation.Checksum == "" {
		cfg.Operation.Checksum = "sha256"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// validate checks the fields that the rest of the program assumes are
// already well-formed, failing fast rather than deep inside a scrub run.
func validate(cfg *Configuration) error {
	if len(cfg.Storage.Path) == 0 {
		return errors.New("configuration must specify at least one storage.path")
	}
	if cfg.Storage.Metadata.DB == "" {
		return errors.New("configuration must specify storage.metadata.db")
	}
	if cfg.Operation.ReadBlock <= 0 {
		return errors.New("operation.read_block must be positive")
	}
	if cfg.Operation.SkipForHours < 0 {
		return errors.New("operation.skip_for_hours must be non-negative")
	}

	if _, err := scrub.ResolveDigest(cfg.Operation.Checksum); err != nil {
		return errors.Wrap(err, "invalid operation.checksum")
	}
	for _, spec := range cfg.Storage.Filter {
		if _, err := walk.ParseRule(spec); err != nil {
			return errors.Wrapf(err, "invalid storage.filter entry %q", spec)
		}
	}
	if _, err := ratelimit.ParseSpec("scan", cfg.Operation.RateLimit.Scan); err != nil {
		return err
	}
	if _, err := ratelimit.ParseSpec("read", cfg.Operation.RateLimit.Read); err != nil {
		return err
	}

	return nil
}
