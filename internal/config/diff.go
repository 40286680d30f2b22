package config

import "reflect"

// ConfigDiff describes what changed between two configs. Only the log level,
// the default strategy and punctuation toggling apply without a restart;
// every other changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	StrategyChanged bool
	NewStrategy     string

	PunctuationChanged bool
	PunctuationEnabled bool

	// RestartRequired names changed top-level sections that are only read at
	// startup, e.g. "providers" or "corpus".
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.StrategyChanged || d.PunctuationChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.Resolver.Strategy != new.Resolver.Strategy {
		d.StrategyChanged = true
		d.NewStrategy = new.Resolver.Strategy
	}
	if old.Punctuation.Enabled != new.Punctuation.Enabled {
		d.PunctuationChanged = true
		d.PunctuationEnabled = new.Punctuation.Enabled
	}

	// The strategy is hot; the rest of the resolver section is not.
	oldRes, newRes := old.Resolver, new.Resolver
	oldRes.Strategy, newRes.Strategy = "", ""
	oldPunct, newPunct := old.Punctuation, new.Punctuation
	oldPunct.Enabled, newPunct.Enabled = false, false

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", old.Server, new.Server},
		{"providers", old.Providers, new.Providers},
		{"corpus", old.Corpus, new.Corpus},
		{"resolver", oldRes, newRes},
		{"matcher", old.Matcher, new.Matcher},
		{"punctuation", oldPunct, newPunct},
		{"transcript", old.Transcript, new.Transcript},
		{"history", old.History, new.History},
		{"media", old.Media, new.Media},
		{"resilience", old.Resilience, new.Resilience},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
