package restive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// VariableResolver resolves {{...}} template placeholders in request text.
// The pipeline treats it as an opaque external dependency: what a variable
// resolves to (environments, prompts, previous responses) is the caller's
// business, and resolution may suspend on I/O.
type VariableResolver func(ctx context.Context, text string) (string, error)

var placeholderRe = regexp.MustCompile(`{{\s*(.*?)\s*}}`)

// EnvResolver returns a convenience VariableResolver backed by explicit vars,
// OS environment variables and a .env file in dotEnvDir, in that precedence.
// It also generates the simple per-call system variables {{$uuid}}, {{$guid}},
// {{$timestamp}} and {{$isoTimestamp}}. Placeholders support a
// {{name | fallback}} form; unresolved placeholders are left untouched.
func EnvResolver(vars map[string]string, dotEnvDir string) VariableResolver {
	dotEnvVars := map[string]string{}
	if dotEnvDir != "" {
		envFilePath := filepath.Join(dotEnvDir, ".env")
		if _, err := os.Stat(envFilePath); err == nil {
			loaded, loadErr := godotenv.Read(envFilePath)
			if loadErr != nil {
				slog.Warn("EnvResolver: failed to load .env file", "path", envFilePath, "error", loadErr)
			} else {
				dotEnvVars = loaded
			}
		}
	}

	return func(_ context.Context, text string) (string, error) {
		systemVars := generateSystemVariables()
		resolved := placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
			directive := strings.TrimSpace(match[2 : len(match)-2])
			name, fallback, hasFallback := parseVariableDirective(directive)

			if strings.HasPrefix(name, "$") {
				if val, ok := systemVars[name]; ok {
					return val
				}
				return match
			}
			if val, ok := vars[name]; ok {
				return val
			}
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			if val, ok := dotEnvVars[name]; ok {
				return val
			}
			if hasFallback {
				return fallback
			}
			return match
		})
		return resolved, nil
	}
}

// parseVariableDirective splits a placeholder directive into the variable
// name and its optional "| fallback" value.
func parseVariableDirective(directive string) (name, fallback string, hasFallback bool) {
	if before, after, found := strings.Cut(directive, "|"); found {
		return strings.TrimSpace(before), strings.TrimSpace(after), true
	}
	return directive, "", false
}

// generateSystemVariables creates the simple no-argument system variables
// once per resolver call, so repeated {{$uuid}} uses within one request
// resolve to the same value.
func generateSystemVariables() map[string]string {
	vars := make(map[string]string)
	vars["$uuid"] = uuid.NewString()
	vars["$guid"] = vars["$uuid"]
	vars["$timestamp"] = strconv.FormatInt(time.Now().UTC().Unix(), 10)
	vars["$isoTimestamp"] = time.Now().UTC().Format(time.RFC3339)
	return vars
}
