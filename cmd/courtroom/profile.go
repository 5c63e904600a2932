package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultAPIURL = "http://localhost:8000"

// Profile holds the settings read from ~/.config/courtroom.yaml
type Profile struct {
	APIURL   string `yaml:"api_url"`
	NotesDB  string `yaml:"notes_db"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// defaultProfilePath is empty when the home directory cannot be found
func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "courtroom.yaml")
}

func defaultProfile() Profile {
	p := Profile{APIURL: defaultAPIURL, LogLevel: "info"}
	if dir, err := os.UserCacheDir(); err == nil {
		p.NotesDB = filepath.Join(dir, "courtroom", "notes.db")
		p.LogFile = filepath.Join(dir, "courtroom", "courtroom.log")
	} else {
		p.NotesDB = filepath.Join(os.TempDir(), "courtroom", "notes.db")
		p.LogFile = filepath.Join(os.TempDir(), "courtroom", "courtroom.log")
	}
	return p
}

// LoadProfile reads the profile at path over the defaults. A missing file
// is only an error when required is set.
func LoadProfile(path string, required bool) (Profile, error) {
	p := defaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("load profile %q: %w", path, err)
	}

	var file Profile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return p, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if file.APIURL != "" {
		p.APIURL = file.APIURL
	}
	if file.NotesDB != "" {
		p.NotesDB = expandHome(file.NotesDB)
	}
	if file.LogFile != "" {
		p.LogFile = expandHome(file.LogFile)
	}
	if file.LogLevel != "" {
		p.LogLevel = file.LogLevel
	}
	return p, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
