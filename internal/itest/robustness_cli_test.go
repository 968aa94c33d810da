//go:build integration

package itest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

const cliTimeout = 30 * time.Second

type robustCase struct {
	name            string
	args            func(t *testing.T, repoRoot string) []string
	env             map[string]string
	wantContains    []string
	wantNotContains []string
}

type cliRunResult struct {
	exitCode int
	output   string
}

func TestRobustness_ArgsValidation(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name: "no subcommand args",
			args: staticArgs("segment"),
			wantContains: []string{
				"accepts 1 arg(s), received 0",
			},
		},
		{
			name: "too many args",
			args: transcriptArgs("segment", "{}", "extra"),
			wantContains: []string{
				"accepts 1 arg(s), received 2",
			},
		},
		{
			name: "unknown flag",
			args: transcriptArgs("segment", "{}", "--wat"),
			wantContains: []string{
				"unknown flag: --wat",
			},
		},
		{
			name: "max blocks non int",
			args: transcriptArgs("segment", "{}", "--max-blocks", "nope"),
			wantContains: []string{
				`invalid argument "nope" for "--max-blocks"`,
			},
		},
		{
			name: "capped without max",
			args: transcriptArgs("segment", "{}", "--strategy", "capped"),
			wantContains: []string{
				"config: invalid split config: max_blocks must be >= 1",
			},
		},
		{
			name: "overlap wider than block",
			args: transcriptArgs("segment", `{"video_duration": 5400}`, "--overlap", "2000"),
			wantContains: []string{
				"must be smaller than block size",
			},
		},
		{
			name: "threshold out of range",
			args: transcriptArgs("reassemble", "[]", "--threshold", "120"),
			wantContains: []string{
				"threshold must be within (0, 100]",
			},
		},
		{
			name: "unknown frame",
			args: transcriptArgs("reassemble", "[]", "--frame", "sideways"),
			wantContains: []string{
				`unknown frame "sideways"`,
			},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func TestRobustness_InvalidInput(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name: "missing input path",
			args: func(t *testing.T, _ string) []string {
				return []string{"segment", filepath.Join(t.TempDir(), "does-not-exist.json")}
			},
			wantContains: []string{
				"config: stat input:",
			},
		},
		{
			name: "input is not json",
			args: transcriptArgs("segment", "not json"),
			wantContains: []string{
				"decode transcript:",
			},
		},
		{
			name: "results are not json",
			args: transcriptArgs("reassemble", `{"shorts": [`),
			wantContains: []string{
				"decode block result:",
			},
		},
		{
			name: "out points to file",
			args: func(t *testing.T, _ string) []string {
				t.Helper()
				tmp := t.TempDir()
				outFile := filepath.Join(tmp, "out-file")
				if err := os.WriteFile(outFile, []byte("x"), 0o644); err != nil {
					t.Fatalf("write out file fixture: %v", err)
				}
				in := filepath.Join(tmp, "t.json")
				if err := os.WriteFile(in, []byte(`{"video_duration": 60}`), 0o644); err != nil {
					t.Fatalf("write input fixture: %v", err)
				}
				return []string{"segment", in, "--out", outFile}
			},
			wantContains: []string{
				"not a directory",
			},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func TestRobustness_MalformedResultsDegrade(t *testing.T) {
	repoRoot := mustRepoRoot(t)
	in := filepath.Join(t.TempDir(), "results.json")
	body := `[
		{"shorts": [{"start": 100, "end": 130, "title": "kept"}], "block_metadata": {"block_id": 1}},
		{"shorts": [{"start": "1100", "end": 1130}], "block_metadata": {"block_id": 2}},
		{"shorts": 3, "block_metadata": {"block_id": 3}}
	]`
	if err := os.WriteFile(in, []byte(body), 0o644); err != nil {
		t.Fatalf("write input fixture: %v", err)
	}

	out := runCLIStdout(t, repoRoot, "reassemble", in)
	for _, want := range []string{`"title": "kept"`, `"malformed": 2`, `"blocks_processed": 3`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("expected output to contain %q\noutput:\n%s", want, out)
		}
	}
}

func TestRobustness_EnvConfig(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name: "reject unknown log level",
			args: transcriptArgs("segment", "{}"),
			env: map[string]string{
				"BLOCKCUT_LOG_LEVEL": "chatty",
			},
			wantContains: []string{
				`config: logging.level "chatty"`,
			},
		},
		{
			name: "reject broken config file",
			args: func(t *testing.T, _ string) []string {
				t.Helper()
				cfg := filepath.Join(t.TempDir(), "blockcut.yaml")
				if err := os.WriteFile(cfg, []byte("split: ["), 0o644); err != nil {
					t.Fatalf("write config fixture: %v", err)
				}
				return []string{"template", "--config", cfg}
			},
			wantContains: []string{
				"config: unmarshal config:",
			},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func runRobustCases(t *testing.T, repoRoot string, cases []robustCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := runCLI(t, repoRoot, tc.args(t, repoRoot), tc.env)
			if res.exitCode == 0 {
				t.Fatalf("expected non-zero exit code, got 0\noutput:\n%s", res.output)
			}
			for _, want := range tc.wantContains {
				if !strings.Contains(res.output, want) {
					t.Fatalf("expected output to contain %q\noutput:\n%s", want, res.output)
				}
			}
			for _, notWant := range tc.wantNotContains {
				if strings.Contains(res.output, notWant) {
					t.Fatalf("expected output to not contain %q\noutput:\n%s", notWant, res.output)
				}
			}
		})
	}
}

func runCLI(t *testing.T, repoRoot string, args []string, env map[string]string) cliRunResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	cmdArgs := append([]string{"run", "./cmd/blockcut"}, args...)
	cmd := exec.CommandContext(ctx, "go", cmdArgs...)
	cmd.Dir = repoRoot
	cmd.Env = mergeEnv(
		os.Environ(),
		map[string]string{
			"NO_COLOR": "1",
			"TERM":     "dumb",
		},
		env,
	)

	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("command timed out after %s: go %s", cliTimeout, strings.Join(cmdArgs, " "))
	}

	res := cliRunResult{output: string(out)}
	if err == nil {
		res.exitCode = 0
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		return res
	}

	t.Fatalf("run command: %v\noutput:\n%s", err, string(out))
	return cliRunResult{}
}

func mergeEnv(base []string, overrides ...map[string]string) []string {
	env := make(map[string]string, len(base))
	for _, kv := range base {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		env[kv[:i]] = kv[i+1:]
	}

	for _, set := range overrides {
		for k, v := range set {
			env[k] = v
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}

// transcriptArgs writes body to a temp file and passes it as the command's
// input, followed by extra.
func transcriptArgs(sub, body string, extra ...string) func(t *testing.T, _ string) []string {
	return func(t *testing.T, _ string) []string {
		t.Helper()
		in := filepath.Join(t.TempDir(), "input.json")
		if err := os.WriteFile(in, []byte(body), 0o644); err != nil {
			t.Fatalf("write input fixture: %v", err)
		}
		return append([]string{sub, in}, extra...)
	}
}

func staticArgs(args ...string) func(t *testing.T, _ string) []string {
	clone := append([]string(nil), args...)
	return func(t *testing.T, _ string) []string {
		t.Helper()
		return append([]string(nil), clone...)
	}
}
