package menu

import (
	"fmt"
	"os/exec"
	"strings"
)

// programs lists the supported launchers in order of preference.
var programs = []string{"rofi", "wofi", "fuzzel", "bemenu", "dmenu"}

// Detect returns the first supported launcher found in PATH.
func Detect() (string, error) {
	return detect(exec.LookPath)
}

func detect(lookPath func(string) (string, error)) (string, error) {
	for _, prog := range programs {
		if path, err := lookPath(prog); err == nil && path != "" {
			return prog, nil
		}
	}
	return "", fmt.Errorf("no dmenu-compatible program found (tried: %s)", strings.Join(programs, ", "))
}

// launcherArgs returns the arguments that put prog in dmenu mode with the
// given prompt, followed by the user's extra arguments.
func launcherArgs(prog, prompt string, lines int, extra []string) []string {
	var args []string
	switch prog {
	case "rofi":
		args = []string{"-dmenu", "-p", prompt, "-i"}
	case "wofi":
		args = []string{"--dmenu", "--prompt", prompt, "--insensitive"}
	case "fuzzel":
		args = []string{"--dmenu", "--prompt", prompt + ": "}
	case "bemenu":
		args = []string{"-p", prompt, "-i", "-l", fmt.Sprint(lines)}
	case "dmenu":
		args = []string{"-p", prompt, "-i", "-l", fmt.Sprint(lines)}
	default:
		args = []string{"-p", prompt}
	}
	return append(args, extra...)
}
