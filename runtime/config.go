package runtime

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// FileConfig is the on-disk shape of a Runtime's tunables, loaded the same
// way dragonfly's whitelist.go loads whitelist.toml: a plain struct with
// toml tags, read and unmarshaled in one step.
type FileConfig struct {
	Scheduler struct {
		// Workers is the fixed scheduler worker pool size. 0 picks
		// CPU count - 1.
		Workers int `toml:"workers"`
	} `toml:"scheduler"`
	ECS struct {
		// ComponentChunkSize is a slab chunk size for component
		// stores. Nothing in this module applies it: RegisterComponent
		// takes its chunk size from ComponentConfig.ChunkSize only, so
		// a caller passes this value there itself.
		ComponentChunkSize int `toml:"component_chunk_size"`
	} `toml:"ecs"`
}

// LoadConfig reads and parses a TOML file at path into a FileConfig.
func LoadConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("runtime: read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("runtime: parse config %s: %w", path, err)
	}
	return fc, nil
}
