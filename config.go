package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

const defaultConfigPath = "config/peerhost.yml"

var config map[interface{}]interface{}

// LoadConfig loads the configuration file.
// A missing file leaves every key at its default.
func LoadConfig(path string) error {
	config = make(map[interface{}]interface{})

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// ConfKey returns a key in the configuration.
// Nested keys are separated by colons.
func ConfKey(key string) interface{} {
	keys := strings.Split(key, ":")
	c := config
	for i := 0; i < len(keys)-1; i++ {
		var ok bool
		c, ok = c[keys[i]].(map[interface{}]interface{})
		if !ok {
			return nil
		}
	}

	return c[keys[len(keys)-1]]
}

func confString(key, def string) string {
	if s, ok := ConfKey(key).(string); ok {
		return s
	}

	return def
}

func confInt(key string, def int) int {
	if n, ok := ConfKey(key).(int); ok {
		return n
	}

	return def
}

func confBool(key string, def bool) bool {
	if b, ok := ConfKey(key).(bool); ok {
		return b
	}

	return def
}
