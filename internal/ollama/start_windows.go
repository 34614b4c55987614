// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package ollama

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// Windows process creation flags
const (
	createNoWindow  = 0x08000000
	detachedProcess = 0x00000008
)

// First launch on Windows is slow.
const (
	startTimeout = 15 * time.Second
	checkTimeout = time.Second
)

// findOllamaExecutable looks in PATH, then in the usual install locations.
func findOllamaExecutable() (string, error) {
	for _, name := range []string{"ollama.exe", "ollama"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	var candidates []string
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "Programs", "Ollama", "ollama.exe"))
	}
	candidates = append(candidates,
		`C:\Program Files\Ollama\ollama.exe`,
		`C:\Program Files (x86)\Ollama\ollama.exe`,
	)
	if home := os.Getenv("USERPROFILE"); home != "" {
		candidates = append(candidates, filepath.Join(home, "Ollama", "ollama.exe"))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New(`ollama.exe not found in PATH, %LOCALAPPDATA%\Programs\Ollama or C:\Program Files\Ollama`)
}

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow | detachedProcess,
	}
}
