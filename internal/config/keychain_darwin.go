//go:build darwin

package config

import "os/exec"

// keychainExec reads a generic password from the macOS Keychain. The
// OpenAI API key lives under service "aicmo", account "openai_api_key".
func keychainExec(service, account string) ([]byte, error) {
	return exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
}
