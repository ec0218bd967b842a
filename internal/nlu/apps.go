package nlu

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// AppDescriptor tells how to start an application and which word shows up
// on screen once it is open.
type AppDescriptor struct {
	LaunchCommand       string `toml:"command"`
	ConfirmationKeyword string `toml:"keyword"`
}

// AppTable maps spoken application names to descriptors. It is built once
// at startup and only read afterwards.
type AppTable map[string]AppDescriptor

func DefaultApps() AppTable {
	return AppTable{
		"calculator": {"/usr/bin/gnome-calculator", "calculator"},
		"firefox":    {"firefox-developer-edition", "firefox"},
		"fire":       {"firefox-developer-edition", "firefox"},
		"browser":    {"firefox-developer-edition", "firefox"},
		"terminal":   {"gnome-terminal", "heitor"},
		"files":      {"nemo", "home"},
		"spotify":    {"spotify", "spotify"},
		"whatsapp":   {"flatpak run com.rtosta.zapzap", "whatsapp"},
	}
}

type appsFile struct {
	Apps map[string]AppDescriptor `toml:"apps"`
}

// LoadApps reads an apps file and merges it over the defaults:
//
//	[apps.terminal]
//	command = "alacritty"
//	keyword = "alacritty"
func LoadApps(path string) (AppTable, error) {
	table := DefaultApps()
	if path == "" {
		return table, nil
	}

	var f appsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode apps file %s: %w", path, err)
	}

	for name, app := range f.Apps {
		if app.LaunchCommand == "" {
			return nil, fmt.Errorf("app %q: empty command", name)
		}
		if app.ConfirmationKeyword == "" {
			app.ConfirmationKeyword = name
		}
		table[string(Normalize(name))] = app
	}

	return table, nil
}

func (t AppTable) Lookup(name string) (AppDescriptor, bool) {
	app, ok := t[name]
	return app, ok
}
