// Package testsupport builds the solstice binary for script tests.
package testsupport

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

var (
	buildOnce    sync.Once
	solsticePath string
	buildErr     error
)

// BuildSolstice builds the solstice binary once and returns its path.
func BuildSolstice(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "solstice-bin-")
		if err != nil {
			buildErr = err
			return
		}

		solsticePath = filepath.Join(binDir, "solstice")
		cmd := exec.Command("go", "build", "-o", solsticePath, "./cmd/solstice")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build solstice: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return solsticePath
}

// SetupScriptEnv exposes the binary as $SOLSTICE and clears any
// SOLSTICE_* settings inherited from the developer's shell.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("SOLSTICE", BuildSolstice(t))
	for _, key := range []string{
		"SOLSTICE_CONFIG", "SOLSTICE_ADDR", "SOLSTICE_LOG_LEVEL",
		"SOLSTICE_DB_DRIVER", "SOLSTICE_DB_DSN", "DB_URL", "SOLSTICE_NATS_URL",
	} {
		env.Setenv(key, "")
	}
	return nil
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
