/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

// Package config loads TreeConfig, the handful of tunables the process
// tree core actually has, following the teacher's two-tier pattern: a raw
// gcfg-parsed CfgType validated and normalized by GetConfig, handed to
// callers as the friendlier TreeConfig. None of this is required to run a
// Tree -- DefaultConfig is a ready-to-use zero-configuration value.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/gcfg.v1"

	"github.com/hostsentinel/proctree/internal/plog"
)

// maxConfigSize guards against reading an absurdly large config file by
// accident; a process-tree config is never more than a few lines.
const maxConfigSize int64 = 1024 * 1024 // 1MB

const defaultBackfillConcurrency = 16

var (
	ErrConfigTooLarge      = errors.New("config file far too large")
	ErrInvalidConcurrency  = errors.New("backfill concurrency must be positive")
)

// CfgType is the raw gcfg-parsed shape of a process-tree config file:
//
//	[Global]
//	Backfill-Concurrency = 16
//	Stale-Event-Log-Level = INFO
//	Unknown-Subject-Log-Level = INFO
type CfgType struct {
	Global struct {
		Backfill_Concurrency     int
		Stale_Event_Log_Level    string
		Unknown_Subject_Log_Level string
	}
}

// TreeConfig is the validated, normalized configuration a Tree and its
// surrounding Backfill/Adapter use.
type TreeConfig struct {
	BackfillConcurrency    int
	StaleEventLogLevel     plog.Level
	UnknownSubjectLogLevel plog.Level
}

// DefaultConfig returns a ready-to-use TreeConfig requiring no config
// file, mirroring the teacher's UniformMuxerConfig/MuxerConfig split: most
// callers never need to touch config.GetConfig at all.
func DefaultConfig() *TreeConfig {
	return &TreeConfig{
		BackfillConcurrency:    defaultBackfillConcurrency,
		StaleEventLogLevel:     plog.INFO,
		UnknownSubjectLogLevel: plog.INFO,
	}
}

// GetConfig reads, size-checks, parses, and validates the INI-style config
// file at path, returning a ready-to-use TreeConfig.
func GetConfig(path string) (*TreeConfig, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigTooLarge
	}

	content := make([]byte, fi.Size())
	if _, err := fin.Read(content); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var c CfgType
	if err := gcfg.ReadStringInto(&c, string(content)); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := c.verify(); err != nil {
		return nil, err
	}
	return c.normalize(), nil
}

func (c *CfgType) verify() error {
	if c.Global.Backfill_Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	return nil
}

func (c *CfgType) normalize() *TreeConfig {
	cfg := DefaultConfig()
	if c.Global.Backfill_Concurrency > 0 {
		cfg.BackfillConcurrency = c.Global.Backfill_Concurrency
	}
	if lvl := c.Global.Stale_Event_Log_Level; lvl != "" {
		cfg.StaleEventLogLevel = plog.ParseLevel(lvl)
	}
	if lvl := c.Global.Unknown_Subject_Log_Level; lvl != "" {
		cfg.UnknownSubjectLogLevel = plog.ParseLevel(lvl)
	}
	return cfg
}
