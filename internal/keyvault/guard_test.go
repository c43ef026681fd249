package keyvault_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/keyvault"
)

// The first Hardhat default account, funded on every local dev chain.
const hardhatKey0 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestClassifyKnownTestKeys(t *testing.T) {
	known := []string{
		hardhatKey0,
		"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
		"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
		"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
		"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
		"4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d",
		"6cbed15c793ce57650b9877cf6fa156fbef513c4e6134f022a85b1ffdd59b2a1",
		"c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3",
	}

	for _, key := range known {
		assert.Equal(t, keyvault.VerdictKnownTestKey, keyvault.Classify(key), key)
		// Case and 0x prefix must not matter.
		assert.Equal(t, keyvault.VerdictKnownTestKey, keyvault.Classify("0x"+strings.ToUpper(key)), key)
	}
}

func TestClassifyWeakPattern(t *testing.T) {
	assert.Equal(t, keyvault.VerdictWeakPattern, keyvault.Classify(strings.Repeat("1", 64)))
	assert.Equal(t, keyvault.VerdictWeakPattern, keyvault.Classify(strings.Repeat("a", 64)))
	assert.Equal(t, keyvault.VerdictWeakPattern, keyvault.Classify("0x"+strings.Repeat("F", 64)))
}

func TestClassifyClean(t *testing.T) {
	assert.Equal(t, keyvault.VerdictClean, keyvault.Classify("8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"))
}

func TestEnforceCleanKey(t *testing.T) {
	key := "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
	assert.NoError(t, keyvault.Enforce(key, config.EnvironmentDevelopment))
	assert.NoError(t, keyvault.Enforce(key, config.EnvironmentProduction))
}

func TestEnforceFlaggedKeyInDevelopment(t *testing.T) {
	// Tolerated with a warning; the process must survive.
	assert.NoError(t, keyvault.Enforce(hardhatKey0, config.EnvironmentDevelopment))
	assert.NoError(t, keyvault.Enforce(strings.Repeat("2", 64), config.EnvironmentDevelopment))
}

func TestEnforceFlaggedKeyInProduction(t *testing.T) {
	err := keyvault.Enforce(hardhatKey0, config.EnvironmentProduction)
	assert.ErrorIs(t, err, keyvault.ErrTestKeyViolation)

	err = keyvault.Enforce(strings.Repeat("2", 64), config.EnvironmentProduction)
	assert.ErrorIs(t, err, keyvault.ErrTestKeyViolation)
}

// TestEnforceProductionTerminatesProcess asserts the whole fail-fast path via
// exit code: a child process loading a flagged key in production mode must
// die before any signing capability exists.
func TestEnforceProductionTerminatesProcess(t *testing.T) {
	if os.Getenv("GUARD_CRASH_TEST") == "1" {
		if err := keyvault.Enforce(hardhatKey0, config.EnvironmentProduction); err != nil {
			os.Exit(86)
		}
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestEnforceProductionTerminatesProcess")
	cmd.Env = append(os.Environ(), "GUARD_CRASH_TEST=1")

	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 86, exitErr.ExitCode())
}
