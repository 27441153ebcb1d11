package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// Preferences are per-user defaults for the terminal client, read from
// ~/.bonaparks/studio.toml. Command-line flags always win.
type Preferences struct {
	Owner    string     `toml:"owner"`
	LogLevel string     `toml:"log_level"`
	Chat     ChatPrefs  `toml:"chat"`
	Image    ImagePrefs `toml:"image"`
	Video    VideoPrefs `toml:"video"`
}

type ChatPrefs struct {
	Locale   string `toml:"locale"`
	ImageDir string `toml:"image_dir"`
}

type ImagePrefs struct {
	Ratio     string `toml:"ratio"`
	SavedLogo bool   `toml:"saved_logo"`
}

type VideoPrefs struct {
	Ratio string `toml:"ratio"`
}

func defaultPrefsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bonaparks", "studio.toml")
}

// loadPreferences reads path; a missing file yields zero Preferences.
func loadPreferences(path string) (Preferences, error) {
	var prefs Preferences
	if path == "" {
		return prefs, nil
	}
	if _, err := toml.DecodeFile(path, &prefs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return prefs, nil
}

// applyPreferences copies non-empty preferences into flags the user did not
// set explicitly.
func applyPreferences(cmd *cobra.Command, prefs Preferences) error {
	values := map[string]string{
		"owner":     prefs.Owner,
		"log-level": prefs.LogLevel,
	}
	switch cmd.Name() {
	case "chat":
		values["locale"] = prefs.Chat.Locale
		values["image-dir"] = prefs.Chat.ImageDir
	case "image":
		values["ratio"] = prefs.Image.Ratio
		if prefs.Image.SavedLogo {
			values["saved-logo"] = "true"
		}
	case "video":
		values["ratio"] = prefs.Video.Ratio
	}
	for name, value := range values {
		if value == "" {
			continue
		}
		flag := cmd.Flags().Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("preference %s: %w", name, err)
		}
	}
	return nil
}
