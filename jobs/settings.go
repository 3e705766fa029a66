package jobs

import (
	"os"
	"runtime"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSettings = eris.New("invalid job settings")

// Settings control how a job is split into chunks and when the chunks run.
type Settings struct {
	// Split each archetype into multiple chunks that may run in parallel
	Multithreaded bool `yaml:"multithreaded"`

	// Lower bound for the number of rows in one chunk
	MinChunkSize int `yaml:"minChunkSize"`

	// Number of chunks an archetype is split into, unless that makes chunks smaller than MinChunkSize
	MaxThreadCount int `yaml:"maxThreadCount"`

	// Number of ticks to wait before running the chunks
	TickDelay int `yaml:"tickDelay"`

	// Spread the chunks over this many ticks
	LoadBalancingTicks int `yaml:"loadBalancingTicks"`

	// Tick blocks until all chunks of this job completed
	WaitForComplete bool `yaml:"waitForComplete"`

	// Run all chunks directly in Schedule instead of passing them to the pipeline
	ExecuteNow bool `yaml:"executeNow"`

	// Gate is consulted when scheduling. If it returns false, the job is skipped.
	Gate func() bool `yaml:"-"`
}

func DefaultSettings() Settings {
	return Settings{
		Multithreaded:   true,
		MinChunkSize:    1024,
		MaxThreadCount:  runtime.GOMAXPROCS(0),
		WaitForComplete: true,
	}
}

func (s Settings) Validate() error {
	if s.MinChunkSize <= 0 {
		return eris.Wrapf(ErrInvalidSettings, "minChunkSize must be positive, got %d", s.MinChunkSize)
	}

	if s.MaxThreadCount <= 0 {
		return eris.Wrapf(ErrInvalidSettings, "maxThreadCount must be positive, got %d", s.MaxThreadCount)
	}

	if s.TickDelay < 0 || s.LoadBalancingTicks < 0 {
		return eris.Wrapf(ErrInvalidSettings, "tick values must not be negative")
	}

	return nil
}

// ChunkSize returns the number of rows per chunk for an archetype with the given number of rows.
func (s Settings) ChunkSize(rowCount int) int {
	if !s.Multithreaded {
		return max(rowCount, 1)
	}

	return max(s.MinChunkSize, rowCount/s.MaxThreadCount)
}

func (s Settings) enabled() bool {
	return s.Gate == nil || s.Gate()
}

// ParseSettings reads settings from yaml. Fields not present
// in the document keep their default values.
func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, eris.Wrap(err, "parse job settings")
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// ParseNamedSettings reads a yaml mapping of job names to settings.
func ParseNamedSettings(data []byte) (map[string]Settings, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "parse job settings")
	}

	named := make(map[string]Settings, len(raw))

	for name, node := range raw {
		settings := DefaultSettings()
		if err := node.Decode(&settings); err != nil {
			return nil, eris.Wrapf(err, "parse settings of job %q", name)
		}

		if err := settings.Validate(); err != nil {
			return nil, eris.Wrapf(err, "job %q", name)
		}

		named[name] = settings
	}

	return named, nil
}

// LoadNamedSettings reads named settings from a yaml file.
func LoadNamedSettings(path string) (map[string]Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %q", path)
	}

	return ParseNamedSettings(data)
}
