package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/daemonrun"
)

// newTranscriber is swapped in tests to avoid launching a real model.
var newTranscriber daemonrun.Factory

type overrideFlags struct {
	input         string
	archive       string
	workers       int
	backend       string
	model         string
	txt           bool
	noTxt         bool
	watcher       string
	recursive     bool
	failurePolicy string
	logLevel      string
}

type commandContext struct {
	configFlag *string
	flags      *overrideFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, flags *overrideFlags) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		flags:      flags,
	}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if cmd != nil {
			c.applyOverrides(cmd, cfg)
		}
		if err := cfg.Finalize(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := c.flags
	if f == nil {
		return
	}
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}
	if changed("input") {
		cfg.Paths.InputDir = f.input
	}
	if changed("archive") {
		cfg.Paths.ArchiveDir = f.archive
	}
	if changed("workers") {
		cfg.Workflow.MaxWorkers = f.workers
	}
	if changed("backend") {
		cfg.Transcription.Backend = f.backend
	}
	if changed("model") {
		if strings.EqualFold(strings.TrimSpace(cfg.Transcription.Backend), config.BackendOpenAI) {
			cfg.OpenAI.Model = f.model
		} else {
			cfg.Transcription.Model = f.model
		}
	}
	if changed("txt") {
		cfg.Transcription.WriteTranscript = f.txt
	}
	if changed("no-txt") {
		cfg.Transcription.WriteTranscript = !f.noTxt
	}
	if changed("watcher") {
		cfg.Workflow.Watcher = f.watcher
	}
	if changed("recursive") {
		cfg.Workflow.Recursive = f.recursive
	}
	if changed("failure-policy") {
		cfg.Workflow.FailurePolicy = f.failurePolicy
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
