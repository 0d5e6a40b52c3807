package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/msrpctl/internal/manager"
)

// peerFile is the negotiated remote media line plus per-run options.
type peerFile struct {
	RemotePath  string `toml:"remote_path"`
	Setup       string `toml:"setup"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	ContentType string `toml:"content_type"`
	OutputDir   string `toml:"output_dir"`
	EmptyChunk  bool   `toml:"empty_chunk"`
}

type peerConfig struct {
	Media       manager.Media
	ContentType string
	OutputDir   string
	EmptyChunk  bool
}

func defaultPeerConfig() peerConfig {
	return peerConfig{
		Media: manager.Media{
			Setup: manager.SetupPassive,
			Host:  "127.0.0.1",
			Port:  2855,
		},
		ContentType: "application/octet-stream",
		OutputDir:   ".",
		EmptyChunk:  true,
	}
}

func loadPeerConfig(path string) (peerConfig, error) {
	cfg := defaultPeerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw peerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return peerConfig{}, fmt.Errorf("load peer config: %w", err)
	}

	if meta.IsDefined("remote_path") {
		cfg.Media.Path = strings.TrimSpace(raw.RemotePath)
	}
	if meta.IsDefined("setup") {
		setup := strings.ToLower(strings.TrimSpace(raw.Setup))
		switch setup {
		case manager.SetupActive, manager.SetupPassive, "actpass":
		default:
			return peerConfig{}, fmt.Errorf("parse setup: unknown value %q", raw.Setup)
		}
		cfg.Media.Setup = setup
	}
	if meta.IsDefined("host") {
		cfg.Media.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return peerConfig{}, fmt.Errorf("parse port: %d out of range", raw.Port)
		}
		cfg.Media.Port = raw.Port
	}
	if meta.IsDefined("content_type") {
		cfg.ContentType = strings.TrimSpace(raw.ContentType)
	}
	if meta.IsDefined("output_dir") {
		cfg.OutputDir = strings.TrimSpace(raw.OutputDir)
	}
	if meta.IsDefined("empty_chunk") {
		cfg.EmptyChunk = raw.EmptyChunk
	}
	return cfg, nil
}
