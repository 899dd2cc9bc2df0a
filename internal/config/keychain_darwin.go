//go:build darwin

package config

import "os/exec"

// keychainExec reads a generic password from the macOS Keychain via the
// security CLI.
func keychainExec(service, account string) ([]byte, error) {
	return exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
}
