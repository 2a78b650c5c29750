package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/errors"
	"github.com/conclave-ai/conclave/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// testRoster is the roster used by command tests.
const testRoster = `agents:
  - id: gpt-5
    name: GPT-5
    command: ["true"]
  - id: claude-opus
    name: Claude Opus
    command: ["true"]
  - id: local-llama
    name: Llama (local)
    command: ["true"]
    serialized: true
`

// setupTestConfig points viper at a temp data dir and roster file. Explicit
// viper.Set values outrank anything initConfig loads later.
func setupTestConfig(t *testing.T) string {
	t.Helper()

	viper.Reset()
	config.SetDefaults()

	dataDir := t.TempDir()
	rosterPath := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(rosterPath, []byte(testRoster), 0644); err != nil {
		t.Fatalf("failed to write test roster: %v", err)
	}

	viper.Set("paths.data_dir", dataDir)
	viper.Set("paths.roster_file", rosterPath)
	viper.Set("logging.enabled", false)

	t.Cleanup(viper.Reset)
	return dataDir
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "conclave" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "conclave")
	}

	expectedCmds := []string{"init", "launch", "status", "logs", "abort", "chat", "watch", "councils", "projects", "agents"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestCouncilsCreate(t *testing.T) {
	dataDir := setupTestConfig(t)

	councilAgents = nil
	councilChairman = ""
	councilRounds = 0

	_, err := executeCommand(rootCmd, "councils", "create", "architects",
		"--agents", "gpt-*", "--agents", "claude-opus",
		"--chairman", "claude-opus", "--rounds", "2")
	if err != nil {
		t.Fatalf("councils create failed: %v", err)
	}

	st, err := store.NewFileStore(dataDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	councils, err := st.ListCouncils(context.Background())
	if err != nil {
		t.Fatalf("failed to list councils: %v", err)
	}
	if len(councils) != 1 {
		t.Fatalf("got %d councils, want 1", len(councils))
	}

	c := councils[0]
	if c.Name != "architects" {
		t.Errorf("council name = %q, want %q", c.Name, "architects")
	}
	wantAgents := []string{"gpt-5", "claude-opus"}
	if len(c.AgentIDs) != len(wantAgents) {
		t.Fatalf("agent ids = %v, want %v", c.AgentIDs, wantAgents)
	}
	for i, id := range wantAgents {
		if c.AgentIDs[i] != id {
			t.Errorf("agent[%d] = %q, want %q", i, c.AgentIDs[i], id)
		}
	}
	if c.ChairmanAgentID != "claude-opus" {
		t.Errorf("chairman = %q, want %q", c.ChairmanAgentID, "claude-opus")
	}
	if c.DiscussionRounds != 2 {
		t.Errorf("rounds = %d, want 2", c.DiscussionRounds)
	}
}

func TestCouncilsCreateUnknownChairman(t *testing.T) {
	setupTestConfig(t)

	councilAgents = nil
	councilChairman = ""
	councilRounds = 0

	_, err := executeCommand(rootCmd, "councils", "create", "bad",
		"--agents", "gpt-*", "--chairman", "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown chairman")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("error = %v, want NotFound", err)
	}
}

func TestCouncilsCreateNoMatches(t *testing.T) {
	setupTestConfig(t)

	councilAgents = nil
	councilChairman = ""
	councilRounds = 0

	_, err := executeCommand(rootCmd, "councils", "create", "empty", "--agents", "no-such-*")
	if err == nil {
		t.Fatal("expected error for pattern with no matches")
	}
}

func TestProjectsAdd(t *testing.T) {
	dataDir := setupTestConfig(t)
	projectDir := t.TempDir()

	_, err := executeCommand(rootCmd, "projects", "add", "api-server", projectDir)
	if err != nil {
		t.Fatalf("projects add failed: %v", err)
	}

	st, err := store.NewFileStore(dataDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	projects, err := st.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1", len(projects))
	}
	if projects[0].Name != "api-server" {
		t.Errorf("project name = %q, want %q", projects[0].Name, "api-server")
	}
	if projects[0].WorkingDir != projectDir {
		t.Errorf("project dir = %q, want %q", projects[0].WorkingDir, projectDir)
	}
}

func TestProjectsAddMissingDir(t *testing.T) {
	setupTestConfig(t)

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := executeCommand(rootCmd, "projects", "add", "ghost", missing)
	if err == nil {
		t.Fatal("expected error for missing project directory")
	}
}

func TestResolveCouncilByNameAndPrefix(t *testing.T) {
	dataDir := setupTestConfig(t)

	st, err := store.NewFileStore(dataDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ctx := context.Background()

	c := council.NewCouncil("architects", []string{"gpt-5"}, "", 0)
	if err := st.SaveCouncil(ctx, c); err != nil {
		t.Fatalf("failed to save council: %v", err)
	}

	byName, err := resolveCouncil(ctx, st, "architects")
	if err != nil {
		t.Fatalf("resolve by name failed: %v", err)
	}
	if byName.ID != c.ID {
		t.Errorf("resolved %q, want %q", byName.ID, c.ID)
	}

	byPrefix, err := resolveCouncil(ctx, st, c.ID[:8])
	if err != nil {
		t.Fatalf("resolve by prefix failed: %v", err)
	}
	if byPrefix.ID != c.ID {
		t.Errorf("resolved %q, want %q", byPrefix.ID, c.ID)
	}

	if _, err := resolveCouncil(ctx, st, "nonexistent"); !errors.IsNotFound(err) {
		t.Errorf("error = %v, want NotFound", err)
	}
}

func TestResolveLaunchLatest(t *testing.T) {
	dataDir := setupTestConfig(t)

	st, err := store.NewFileStore(dataDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ctx := context.Background()

	if _, err := resolveLaunch(ctx, st, ""); !errors.IsNotFound(err) {
		t.Errorf("error with no launches = %v, want NotFound", err)
	}

	c := council.NewCouncil("c", []string{"gpt-5"}, "", 0)
	first := council.NewLaunch(c, "p", "first question")
	second := council.NewLaunch(c, "p", "second question")
	second.Created = first.Created.Add(1) // ensure ordering even on coarse clocks
	if err := st.SaveLaunch(ctx, first); err != nil {
		t.Fatalf("failed to save launch: %v", err)
	}
	if err := st.SaveLaunch(ctx, second); err != nil {
		t.Fatalf("failed to save launch: %v", err)
	}

	latest, err := resolveLaunch(ctx, st, "")
	if err != nil {
		t.Fatalf("resolve latest failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest = %q, want %q", latest.ID, second.ID)
	}

	byPrefix, err := resolveLaunch(ctx, st, first.ID[:8])
	if err != nil {
		t.Fatalf("resolve by prefix failed: %v", err)
	}
	if byPrefix.ID != first.ID {
		t.Errorf("resolved %q, want %q", byPrefix.ID, first.ID)
	}
}

func TestSelectAgentsDeduplicates(t *testing.T) {
	setupTestConfig(t)

	dir, err := openRoster()
	if err != nil {
		t.Fatalf("failed to open roster: %v", err)
	}

	ids, err := selectAgents(dir, []string{"*", "gpt-5"})
	if err != nil {
		t.Fatalf("selectAgents failed: %v", err)
	}
	want := []string{"gpt-5", "claude-opus", "local-llama"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestInitCreatesFiles(t *testing.T) {
	setupTestConfig(t)
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	_, err := executeCommand(rootCmd, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	for _, name := range []string{"config.yaml", "agents.yaml"} {
		path := filepath.Join(configDir, "conclave", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("init did not create %s: %v", name, err)
		}
	}
}
