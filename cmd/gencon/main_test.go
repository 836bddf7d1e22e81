package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gencon/internal/core"
	"gencon/internal/sequence"
	"gencon/pkg/domain"
)

const (
	promoterBases = "ACGTACGTAA"
	orphanBases   = "TTTTGGGG"
)

type fixture struct {
	config    string
	rollup    string
	project   string
	construct string
	part      string
	opt1      string
	opt2      string
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		config: filepath.Join(dir, "gencon.yaml"),
		rollup: filepath.Join(dir, "rollup.json"),
	}
	cfg := "log:\n  mode: development\n" +
		"persistence:\n  driver: sqlite\n  path: " + filepath.Join(dir, "gencon.db") + "\n" +
		"blob:\n  driver: fs\n  root: " + filepath.Join(dir, "sequences") + "\n" +
		"save_state:\n  driver: memory\n" +
		"metrics:\n  namespace: gencon\n"
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0o600))

	e, err := core.NewEditor(core.WithPauseTimeout(0))
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()
	create := func(name, bases string) string {
		b := domain.NewBlock(name)
		if bases != "" {
			b.Sequence = domain.SequenceRef{MD5: sequence.Hash(bases), Length: len(bases)}
		}
		created, _, err := e.BlockCreate(ctx, b)
		require.NoError(t, err)
		return created.ID
	}
	f.part = create("promoter", promoterBases)
	f.opt1 = create("cds-a", "ATGAAATAG")
	f.opt2 = create("cds-b", "ATGCCCTAG")
	list := create("cds", "")
	f.construct = create("device", "")
	_, _, err = e.BlockSetListBlock(ctx, list, true)
	require.NoError(t, err)
	_, _, err = e.BlockOptionsAdd(ctx, list, f.opt1, f.opt2)
	require.NoError(t, err)
	_, _, err = e.BlockAddComponent(ctx, f.construct, f.part, -1, false)
	require.NoError(t, err)
	_, _, err = e.BlockAddComponent(ctx, f.construct, list, -1, false)
	require.NoError(t, err)

	p := domain.NewProject("plasmids")
	p.Components = []string{f.construct}
	p, _, err = e.ProjectCreate(ctx, p)
	require.NoError(t, err)
	f.project = p.ID

	rollup, err := e.ProjectRollup(p.ID)
	require.NoError(t, err)
	raw, err := json.Marshal(rollup)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.rollup, raw, 0o600))
	return f
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "gencon dev"))
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "gencon.yaml")
	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err)
	_, _, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)

	out, _, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "mode: production")
	require.Contains(t, out, "throttle: 20s")

	out, _, err = execute(t, "config", "show", "--config", path, "--log-mode", "development")
	require.NoError(t, err)
	require.Contains(t, out, "mode: development")

	_, _, err = execute(t, "config", "show", "--config", path, "--log-mode", "verbose")
	require.Error(t, err)
}

func TestRollupImportExportList(t *testing.T) {
	f := newFixture(t)

	out, _, err := execute(t, "rollup", "import", f.rollup, "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, "imported "+f.project+" version 1\n", out)

	out, _, err = execute(t, "rollup", "import", f.rollup, "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, "imported "+f.project+" version 2\n", out)

	out, _, err = execute(t, "rollup", "list", "-c", f.config)
	require.NoError(t, err)
	require.Contains(t, out, f.project)
	require.Contains(t, out, "plasmids")

	exported := filepath.Join(t.TempDir(), "export.json")
	_, _, err = execute(t, "rollup", "export", "--project", f.project, "-o", exported, "-c", f.config)
	require.NoError(t, err)
	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	var rollup domain.Rollup
	require.NoError(t, json.Unmarshal(raw, &rollup))
	require.Equal(t, f.project, rollup.Project.ID)
	require.Equal(t, 2, rollup.Project.Version)
	require.Len(t, rollup.Blocks, 5)

	_, _, err = execute(t, "rollup", "export", "--project", "missing", "-c", f.config)
	require.Error(t, err)
}

func TestRollupImportRejectsBadFiles(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"project":{"id":"p","components":["ghost"]},"blocks":{}}`), 0o600))
	_, _, err := execute(t, "rollup", "import", bad, "-c", f.config)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(bad, []byte(`not json`), 0o600))
	_, _, err = execute(t, "rollup", "import", bad, "-c", f.config)
	require.Error(t, err)
}

func TestCombinationsCommand(t *testing.T) {
	f := newFixture(t)
	out, _, err := execute(t, "combinations", f.rollup, "--construct", f.construct, "--all", "-c", f.config)
	require.NoError(t, err)

	var res combinationsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 2, res.Count)
	require.Equal(t, [][]string{{f.part}, {f.opt1, f.opt2}}, res.Positions)
	require.Equal(t, [][]string{{f.part, f.opt1}, {f.part, f.opt2}}, res.Combinations)

	_, _, err = execute(t, "combinations", f.rollup, "-c", f.config)
	require.Error(t, err)
}

func TestOrderSampleCommand(t *testing.T) {
	f := newFixture(t)
	out, _, err := execute(t, "order", "sample", f.rollup, "-n", "1", "--method", domain.MethodMaximumUniqueSet, "-c", f.config)
	require.NoError(t, err)
	var res sampleResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, 2, res.NumberCombinations)
	require.Equal(t, []int{0}, res.ActiveIndices)
	require.Equal(t, [][]string{{f.part, f.opt1}}, res.Combinations)

	out, _, err = execute(t, "order", "sample", f.rollup, "--construct", f.construct, "-n", "2", "--seed", "7", "-c", f.config)
	require.NoError(t, err)
	res = sampleResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, domain.MethodRandomSubset, res.Method)
	require.Len(t, res.ActiveIndices, 2)
	require.Len(t, res.Combinations, 2)

	_, _, err = execute(t, "order", "sample", f.rollup, "-n", "3", "-c", f.config)
	require.Error(t, err)
}

func TestSequencePutGetPrune(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	promoter := filepath.Join(dir, "promoter.txt")
	require.NoError(t, os.WriteFile(promoter, []byte("ACGTA\nCGTAA\n"), 0o600))
	orphan := filepath.Join(dir, "orphan.txt")
	require.NoError(t, os.WriteFile(orphan, []byte(orphanBases), 0o600))

	out, _, err := execute(t, "sequence", "put", promoter, "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, sequence.Hash(promoterBases)+" 10\n", out)
	_, _, err = execute(t, "sequence", "put", orphan, "-c", f.config)
	require.NoError(t, err)

	out, _, err = execute(t, "sequence", "get", sequence.Hash(promoterBases)+"[2:6]", "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, promoterBases[2:6]+"\n", out)

	_, _, err = execute(t, "rollup", "import", f.rollup, "-c", f.config)
	require.NoError(t, err)

	out, _, err = execute(t, "sequence", "prune", "--dry-run", "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, sequence.Hash(orphanBases)+"\n", out)

	out, _, err = execute(t, "sequence", "prune", "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, "removed 1\n", out)

	_, _, err = execute(t, "sequence", "get", sequence.Hash(orphanBases), "-c", f.config)
	require.Error(t, err)
	out, _, err = execute(t, "sequence", "get", sequence.Hash(promoterBases), "-c", f.config)
	require.NoError(t, err)
	require.Equal(t, promoterBases+"\n", out)
}

func TestMetricsFlagPrintsObservations(t *testing.T) {
	f := newFixture(t)
	_, errOut, err := execute(t, "combinations", f.rollup, "--construct", f.construct, "--metrics", "-c", f.config)
	require.NoError(t, err)
	require.Contains(t, errOut, `"project.load"`)
	require.Contains(t, errOut, "gencon_operation_results_total operation=project.load status=success 1")
}
