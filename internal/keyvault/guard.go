package keyvault

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/config"
)

// Verdict classifies a private key against the known-test-key denylist.
type Verdict int

const (
	VerdictClean Verdict = iota
	VerdictKnownTestKey
	VerdictWeakPattern
)

func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictKnownTestKey:
		return "known_test_key"
	case VerdictWeakPattern:
		return "weak_pattern"
	default:
		return "unknown"
	}
}

// ErrTestKeyViolation is returned by Enforce when a flagged key is loaded in
// production. The process entry point must treat it as fatal and exit before
// any signing capability is constructed.
var ErrTestKeyViolation = errors.New("refusing to use a known test or weak key in production")

// knownTestKeys are the default funded accounts shipped by common development
// chains (Hardhat/Anvil accounts #0-#4, the Ganache deterministic mnemonic
// accounts #0-#1, Truffle develop #0). Anyone on the internet holds these keys.
var knownTestKeys = []string{
	// hardhat / anvil default accounts
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	// ganache deterministic mnemonic accounts
	"4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d",
	"6cbed15c793ce57650b9877cf6fa156fbef513c4e6134f022a85b1ffdd59b2a1",
	// truffle develop
	"c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3",
}

// Classify checks key against the denylist (case-insensitive) and the
// structural weakness heuristic. Pure function, no side effects.
func Classify(key string) Verdict {
	normalized := strings.ToLower(strings.TrimPrefix(key, "0x"))

	for _, known := range knownTestKeys {
		if normalized == known {
			return VerdictKnownTestKey
		}
	}

	if isRepeatedDigit(normalized) {
		return VerdictWeakPattern
	}

	return VerdictClean
}

// isRepeatedDigit reports whether the key is one hex digit repeated across
// all 64 positions (e.g. the infamous 0x1111...1111).
func isRepeatedDigit(key string) bool {
	if len(key) != 64 {
		return false
	}
	for i := 1; i < len(key); i++ {
		if key[i] != key[0] {
			return false
		}
	}
	return true
}

// Enforce runs the safety gate once at key-load time, before the key is handed
// to any signer. A flagged key in development is logged and tolerated; in
// production it returns ErrTestKeyViolation, which the caller must escalate to
// a process exit. The key itself is never logged.
func Enforce(key string, environment config.Environment) error {
	verdict := Classify(key)
	if verdict == VerdictClean {
		return nil
	}

	if environment == config.EnvironmentProduction {
		log.Error().
			Str("verdict", verdict.String()).
			Str("environment", string(environment)).
			Msg("Loaded signing key is a publicly known test key, aborting startup")
		return errors.Wrapf(ErrTestKeyViolation, "verdict %s", verdict)
	}

	log.Warn().
		Str("verdict", verdict.String()).
		Str("environment", string(environment)).
		Msg("Signing key is a known test key, acceptable outside production only")
	return nil
}
