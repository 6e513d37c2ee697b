package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// folderOpener launches the platform file manager on path.
var folderOpener = func(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open folder %s: %w", path, err)
	}
	return cmd.Process.Release()
}
