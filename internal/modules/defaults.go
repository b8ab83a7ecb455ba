// Package modules contains the command modules every instance loads.
package modules

import "github.com/keepmind9/hashbang/internal/command"

// Defaults returns fresh default modules in load order
func Defaults(version string) []command.Module {
	return []command.Module{
		NewCTCPModule(version),
		&HelpModule{},
		&FunModule{},
	}
}

// LoadDefaults loads every default module into r
func LoadDefaults(r *command.Registry, version string) error {
	for _, m := range Defaults(version) {
		if err := r.Load(m); err != nil {
			return err
		}
	}
	return nil
}
