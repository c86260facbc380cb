package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// LoadFile reads an options file (YAML or JSON) on top of base. Keys absent
// from the file keep base's values. Format is detected by extension
// (.yaml/.yml, .json) or, failing that, by the first non-blank character.
func LoadFile(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, &Error{Option: "config", Msg: "read options file", Err: err}
	}
	opts, err := Load(data, filepath.Ext(path), base)
	if err != nil {
		return base, &Error{Option: "config", Msg: path, Err: err}
	}
	return opts, nil
}

// Load parses options from data. ext is the file extension used as a format
// hint; empty means detect from content. Unknown keys are rejected.
func Load(data []byte, ext string, base Options) (Options, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}

	opts := base
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return base, fmt.Errorf("parse options json: %w", err)
		}
		return opts, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse options yaml: %w", err)
	}
	return opts, nil
}
