package strategy

import "github.com/dlclark/regexp2"

// TestCommandPatterns is the single source of truth for "this bash command
// runs tests" shared by the strategy feature extractor (C5) and the
// outcome evaluator's session-arc detection (C6). Patterns cover the
// common test runners across ecosystems named in spec §4.4.
var TestCommandPatterns = []string{
	`\bnpm\s+(run\s+)?test\b`,
	`\byarn\s+(run\s+)?test\b`,
	`\bpnpm\s+(run\s+)?test\b`,
	`\bjest\b`,
	`\bvitest\b`,
	`\bmocha\b`,
	`\bpytest\b`,
	`\bpython[3]?\s+-m\s+pytest\b`,
	`\bcargo\s+test\b`,
	`\bgo\s+test\b`,
	`\bmake\s+test\b`,
	`\bdotnet\s+test\b`,
	`\bgradle\s+test\b`,
	`\bmvn\s+test\b`,
}

// BuildCommandPatterns identifies build commands, which §4.5 counts toward
// the "verify" arc state alongside test and lint commands.
var BuildCommandPatterns = []string{
	`\bnpm\s+(run\s+)?build\b`,
	`\byarn\s+build\b`,
	`\bcargo\s+build\b`,
	`\bgo\s+build\b`,
	`\bmake\s+build\b`,
	`\bdotnet\s+build\b`,
	`\btsc\b`,
}

// LintCommandPatterns identifies lint commands, also counted toward the
// verify arc state.
var LintCommandPatterns = []string{
	`\beslint\b`,
	`\bgolangci-lint\b`,
	`\bruff\b`,
	`\bflake8\b`,
	`\bclippy\b`,
	`\bgo\s+vet\b`,
}

func compileAll(patterns []string) []*regexp2.Regexp {
	compiled := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re := regexp2.MustCompile(p, regexp2.IgnoreCase)
		compiled = append(compiled, re)
	}
	return compiled
}

var (
	testRegexes  = compileAll(TestCommandPatterns)
	buildRegexes = compileAll(BuildCommandPatterns)
	lintRegexes  = compileAll(LintCommandPatterns)
)

func matchesAny(regexes []*regexp2.Regexp, s string) bool {
	for _, re := range regexes {
		if ok, _ := re.MatchString(s); ok {
			return true
		}
	}
	return false
}

// IsTestCommand reports whether a shell command invokes a known test
// runner.
func IsTestCommand(command string) bool {
	return matchesAny(testRegexes, command)
}

// IsBuildCommand reports whether a shell command invokes a known build
// tool.
func IsBuildCommand(command string) bool {
	return matchesAny(buildRegexes, command)
}

// IsLintCommand reports whether a shell command invokes a known linter.
func IsLintCommand(command string) bool {
	return matchesAny(lintRegexes, command)
}

// IsVerifyCommand reports whether a command counts toward the "verify"
// session-arc state: test, build, or lint.
func IsVerifyCommand(command string) bool {
	return IsTestCommand(command) || IsBuildCommand(command) || IsLintCommand(command)
}
