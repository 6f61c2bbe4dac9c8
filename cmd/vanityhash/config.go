package main

import (
	"fmt"

	"github.com/xaionaro-go/vanityhash/pkg/vanity"
)

// config is the command line representation of vanity.Settings.
type config struct {
	HashFuncName       string
	BufferLength       uint
	CounterWidth       uint
	WorkerCount        uint
	MaxParallel        uint
	PrefixHex          string
	Prefix             []byte // overrides PrefixHex if not nil
	TargetHex          string
	PartialLength      int
	MaxGuesses         uint64
	StopAtPartitionEnd bool
}

// Settings converts the config into validated vanity.Settings.
func (cfg config) Settings() (vanity.Settings, error) {
	hasherFactory, err := vanity.HasherFactoryByName(cfg.HashFuncName)
	if err != nil {
		return vanity.Settings{}, err
	}

	target, err := vanity.ParseTargetPattern(cfg.TargetHex)
	if err != nil {
		return vanity.Settings{}, err
	}

	prefix := cfg.Prefix
	if prefix == nil {
		prefix, err = vanity.ParseHex(cfg.PrefixHex)
		if err != nil {
			return vanity.Settings{}, fmt.Errorf("invalid prefix: %w", err)
		}
	}

	settings := vanity.Settings{
		BufferLength:       cfg.BufferLength,
		CounterWidth:       cfg.CounterWidth,
		WorkerCount:        cfg.WorkerCount,
		MaxParallel:        cfg.MaxParallel,
		Prefix:             prefix,
		TargetPattern:      target,
		HasherFactory:      hasherFactory,
		MaxGuesses:         cfg.MaxGuesses,
		StopAtPartitionEnd: cfg.StopAtPartitionEnd,
	}
	if settings.BufferLength == 0 {
		settings.BufferLength = uint(len(prefix)) + settings.CounterWidth
	}
	switch {
	case cfg.PartialLength < 0:
		settings.PartialLength = vanity.DefaultPartialLength(target)
	default:
		settings.PartialLength = uint(cfg.PartialLength)
	}

	if err := settings.Validate(); err != nil {
		return vanity.Settings{}, err
	}
	return settings, nil
}
