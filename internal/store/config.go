package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Config locates the two collection documents.
type Config struct {
	DataDir         string `koanf:"data_dir"`
	DefinitionsFile string `koanf:"definitions_file"`
	ResponsesFile   string `koanf:"responses_file"`
	Watch           bool   `koanf:"watch"`
}

// NewDefaultConfig returns the documents' historical locations.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:         "Data",
		DefinitionsFile: "fileData.json",
		ResponsesFile:   "userResponses.json",
	}
}

// Validate checks that both documents resolve inside DataDir.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	for name, file := range map[string]string{
		"definitions_file": c.DefinitionsFile,
		"responses_file":   c.ResponsesFile,
	} {
		if file == "" {
			return fmt.Errorf("%s is required", name)
		}
		if filepath.IsAbs(file) || strings.ContainsAny(file, `/\`) || file == "." || file == ".." {
			return fmt.Errorf("%s must be a plain file name inside data_dir, got %q", name, file)
		}
	}
	if c.DefinitionsFile == c.ResponsesFile {
		return errors.New("definitions_file and responses_file must differ")
	}
	return nil
}
