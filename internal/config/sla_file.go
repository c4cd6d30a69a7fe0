package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// slaFile is the on-disk override for SLA targets and assignment weights.
// Durations are given in minutes.
//
//	first_response_minutes:
//	  urgent: 5
//	resolution_minutes:
//	  high:
//	    after_sale: 480
//	assignment:
//	  load_weight: 30
type slaFile struct {
	FirstResponseMinutes map[string]int            `yaml:"first_response_minutes"`
	ResolutionMinutes    map[string]map[string]int `yaml:"resolution_minutes"`
	Scan                 struct {
		Schedule       string `yaml:"schedule"`
		BatchSize      int    `yaml:"batch_size"`
		DedupSeconds   int    `yaml:"dedup_seconds"`
		QueuePageLimit int    `yaml:"queue_limit"`
	} `yaml:"scan"`
	Assignment struct {
		TagMatchWeight      *float64 `yaml:"tag_weight"`
		CategoryMatchWeight *float64 `yaml:"category_weight"`
		LoadWeight          *float64 `yaml:"load_weight"`
		DefaultMaxSessions  int      `yaml:"default_max_sessions"`
		ReserveAttempts     int      `yaml:"reserve_attempts"`
	} `yaml:"assignment"`
}

func loadSLAFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sla targets file: %w", err)
	}
	return applySLAFile(raw, cfg)
}

func applySLAFile(raw []byte, cfg *Config) error {
	var f slaFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse sla targets file: %w", err)
	}

	if len(f.FirstResponseMinutes) > 0 {
		cfg.SLA.FirstResponse = make(map[string]time.Duration, len(f.FirstResponseMinutes))
		for priority, minutes := range f.FirstResponseMinutes {
			if minutes <= 0 {
				return fmt.Errorf("first_response_minutes.%s must be positive", priority)
			}
			cfg.SLA.FirstResponse[priority] = time.Duration(minutes) * time.Minute
		}
	}
	if len(f.ResolutionMinutes) > 0 {
		cfg.SLA.Resolution = make(map[string]map[string]time.Duration, len(f.ResolutionMinutes))
		for priority, row := range f.ResolutionMinutes {
			cfg.SLA.Resolution[priority] = make(map[string]time.Duration, len(row))
			for ticketType, minutes := range row {
				if minutes <= 0 {
					return fmt.Errorf("resolution_minutes.%s.%s must be positive", priority, ticketType)
				}
				cfg.SLA.Resolution[priority][ticketType] = time.Duration(minutes) * time.Minute
			}
		}
	}

	if f.Scan.Schedule != "" {
		cfg.SLA.ScanSchedule = f.Scan.Schedule
	}
	if f.Scan.BatchSize > 0 {
		cfg.SLA.ScanBatchSize = f.Scan.BatchSize
	}
	if f.Scan.DedupSeconds > 0 {
		cfg.SLA.AlertDedupTTL = time.Duration(f.Scan.DedupSeconds) * time.Second
	}
	if f.Scan.QueuePageLimit > 0 {
		cfg.SLA.QueuePageLimit = f.Scan.QueuePageLimit
	}

	if f.Assignment.TagMatchWeight != nil {
		cfg.Assignment.TagMatchWeight = *f.Assignment.TagMatchWeight
	}
	if f.Assignment.CategoryMatchWeight != nil {
		cfg.Assignment.CategoryMatchWeight = *f.Assignment.CategoryMatchWeight
	}
	if f.Assignment.LoadWeight != nil {
		cfg.Assignment.LoadWeight = *f.Assignment.LoadWeight
	}
	if f.Assignment.DefaultMaxSessions > 0 {
		cfg.Assignment.DefaultMaxSessions = f.Assignment.DefaultMaxSessions
	}
	if f.Assignment.ReserveAttempts > 0 {
		cfg.Assignment.ReserveAttempts = f.Assignment.ReserveAttempts
	}
	return nil
}
