// ABOUTME: Interactive config file creation for coven-adapter
// ABOUTME: Prompts for listener, bot identity and logging, then writes YAML

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// initAnswers holds the values collected by runInit.
type initAnswers struct {
	HTTPAddr        string
	AppID           string
	AppPasswordEnv  string
	TenantID        string
	Government      bool
	OAuthConnection string
	LogLevel        string
	LogFormat       string
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("coven-adapter configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", "localhost:3978")

	fmt.Println("\n--- Bot Identity ---")
	a.AppID = prompt(reader, "App ID (leave empty to disable authentication)", "")
	if a.AppID != "" {
		a.AppPasswordEnv = prompt(reader, "Environment variable holding the app password", "MICROSOFT_APP_PASSWORD")
		a.TenantID = prompt(reader, "Tenant ID (single-tenant bots only)", "")
		a.Government = isYes(prompt(reader, "US government cloud?", "no"))
	}
	a.OAuthConnection = prompt(reader, "OAuth connection name (leave empty to disable sign-in)", "")

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var buf strings.Builder
	writeConfig(&buf, a)
	if err := os.WriteFile(outputFile, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  coven-adapter serve\n")

	return nil
}

// adminTokenEnv is the variable generated configs read the admin token from.
const adminTokenEnv = "COVEN_ADAPTER_ADMIN_TOKEN"

// writeConfig renders answers as a config file. The password is referenced
// through an environment variable so it never lands on disk.
func writeConfig(w io.Writer, a initAnswers) {
	fmt.Fprint(w, "# coven-adapter configuration\n")
	fmt.Fprint(w, "# Generated by coven-adapter init\n\n")

	fmt.Fprint(w, "server:\n")
	fmt.Fprintf(w, "  http_addr: %q\n", a.HTTPAddr)
	fmt.Fprint(w, "\n")

	fmt.Fprint(w, "bot:\n")
	fmt.Fprintf(w, "  app_id: %q\n", a.AppID)
	if a.AppID != "" {
		fmt.Fprintf(w, "  app_password: \"${%s}\"\n", a.AppPasswordEnv)
	}
	if a.TenantID != "" {
		fmt.Fprintf(w, "  tenant_id: %q\n", a.TenantID)
	}
	if a.Government {
		fmt.Fprint(w, "  channel_service: \"https://botframework.azure.us\"\n")
	}
	if a.OAuthConnection != "" {
		fmt.Fprintf(w, "  oauth_connection: %q\n", a.OAuthConnection)
	}
	fmt.Fprint(w, "\n")

	fmt.Fprint(w, "dedupe:\n")
	fmt.Fprint(w, "  enabled: true\n")
	fmt.Fprint(w, "  ttl: \"10m\"\n")
	fmt.Fprint(w, "\n")

	fmt.Fprint(w, "logging:\n")
	fmt.Fprintf(w, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(w, "  format: %q\n", a.LogFormat)
	fmt.Fprint(w, "\n")

	fmt.Fprint(w, "metrics:\n")
	fmt.Fprint(w, "  enabled: true\n")
	fmt.Fprint(w, "  path: \"/metrics\"\n")
	fmt.Fprint(w, "\n")

	fmt.Fprint(w, "# Operator routes (/api/notify, /api/transcript) stay unmounted until the token is set.\n")
	fmt.Fprint(w, "admin:\n")
	fmt.Fprintf(w, "  token: \"${%s}\"\n", adminTokenEnv)
	fmt.Fprint(w, "\n")

	fmt.Fprint(w, "transcript:\n")
	fmt.Fprint(w, "  enabled: false\n")
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
