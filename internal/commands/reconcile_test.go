package commands_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/runlog"
)

// newProject inits a repo and drops the sample statement into import/.
func newProject(t *testing.T, initArgs ...string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runTally(t, append([]string{"init", dir}, initArgs...)...)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "bradesco.ofx"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "bradesco.ofx"), data, 0o644))
	return dir
}

func TestImport_ScansImportDir(t *testing.T) {
	dir := newProject(t)

	out, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "6 transactions")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bradesco.ofx"))
	require.NoError(t, err, "statement should be moved to processed")

	out, err = runTally(t, "statements", "list", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Bradesco")
	assert.Contains(t, out, "56789-0")

	out, err = runTally(t, "pending", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Credits: 3750.00 (2)")
	assert.Contains(t, out, "Debits:  136.40 (4)")
}

func TestImport_ExplicitFileStaysInPlace(t *testing.T) {
	dir := newProject(t, "--no-git")
	src := filepath.Join(dir, "import", "bradesco.ofx")

	out, err := runTally(t, "import", src, "--repo", dir)
	require.NoError(t, err, out)

	_, err = os.Stat(src)
	require.NoError(t, err, "explicit files are not moved")
}

func TestImport_RejectsNonOFX(t *testing.T) {
	dir := newProject(t, "--no-git")
	bad := filepath.Join(t.TempDir(), "notes.ofx")
	require.NoError(t, os.WriteFile(bad, []byte("date,amount\n"), 0o644))

	_, err := runTally(t, "import", bad, "--repo", dir)
	require.Error(t, err)
}

func TestReconcile_PostsAndCommits(t *testing.T) {
	dir := newProject(t)
	_, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err)

	out, err := runTally(t, "reconcile", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Posted:           6")
	assert.Contains(t, out, "Consumed:         6")

	entries, err := ledger.NewService(dir).ReadMonth(context.Background(), "local-user", "2024-01")
	require.NoError(t, err)
	require.Len(t, entries, 6)
	assert.Equal(t, "2024-01-001", entries[0].ID)
	assert.Equal(t, "Salario Empresa Xyz Ltda", entries[0].Description, "oldest transaction posts first")

	logEntries, err := runlog.Read(dir)
	require.NoError(t, err)
	assert.Len(t, logEntries, 6)

	gitLog := exec.Command("git", "log", "--format=%s", "-1")
	gitLog.Dir = dir
	msg, err := gitLog.Output()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "reconcile:")

	// A second run has nothing left.
	out, err = runTally(t, "reconcile", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Nothing to reconcile.")

	out, err = runTally(t, "ledger", "show", "2024-01", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Income:  3750.00")
	assert.Contains(t, out, "Expense: 136.40")
}

func TestReconcile_DryRunPostsNothing(t *testing.T) {
	dir := newProject(t, "--no-git")
	_, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err)

	out, err := runTally(t, "reconcile", "--dry-run", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "matched")
	assert.Contains(t, out, "Salário")

	_, err = os.Stat(filepath.Join(dir, "ledger"))
	require.NoError(t, err)
	entries, err := ledger.NewService(dir).ReadMonth(context.Background(), "local-user", "2024-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReconcile_NoRelevantRules(t *testing.T) {
	dir := newProject(t, "--no-git")
	_, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules", "empty.yaml"), []byte("rules: []\n"), 0o644))
	out, err := runTally(t, "rules", "import", "--file", "rules/empty.yaml", "--repo", dir)
	require.NoError(t, err, out)

	out, err = runTally(t, "reconcile", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "no relevant rules")

	// Emptied rules stay empty.
	out, err = runTally(t, "rules", "list", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No rules.")
}

func TestReconcile_Select(t *testing.T) {
	dir := newProject(t, "--no-git")
	_, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err)

	out, err := runTally(t, "pending", "--repo", dir)
	require.NoError(t, err)
	var salaryID string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "SALARIO") {
			salaryID = strings.Fields(line)[0]
		}
	}
	require.NotEmpty(t, salaryID)

	out, err = runTally(t, "reconcile", "--select", salaryID, "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Posted:           1")

	// Selecting it again reports it as already consumed.
	out, err = runTally(t, "reconcile", "--select", salaryID, "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Already consumed: 1")
	assert.Contains(t, out, "Posted:           0")
}

func TestStatementsDelete(t *testing.T) {
	dir := newProject(t, "--no-git")
	_, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err)

	out, err := runTally(t, "statements", "list", "--repo", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "header + one statement")
	stmtID := strings.Fields(lines[1])[0]

	out, err = runTally(t, "statements", "delete", stmtID, "--repo", dir)
	require.NoError(t, err, out)

	out, err = runTally(t, "pending", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions.")

	_, err = runTally(t, "statements", "delete", stmtID, "--repo", dir)
	require.Error(t, err)
}

func TestReset_RequiresConfirmation(t *testing.T) {
	dir := newProject(t, "--no-git")
	_, err := runTally(t, "import", "--repo", dir)
	require.NoError(t, err)

	_, err = runTally(t, "reset", "--repo", dir)
	require.Error(t, err)

	out, err := runTally(t, "reset", "--yes", "--repo", dir)
	require.NoError(t, err, out)

	out, err = runTally(t, "statements", "list", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No statements.")
}

func TestRules_ExportImportRoundTrip(t *testing.T) {
	dir := newProject(t, "--no-git")

	out, err := runTally(t, "rules", "export", "--file", "rules/out.yaml", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Exported 21 rules")

	out, err = runTally(t, "rules", "import", "--file", "rules/out.yaml", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 21 rules")

	_, err = runTally(t, "rules", "seed", "--repo", dir)
	require.Error(t, err, "seed refuses when rules exist")
}

func TestMissingProject(t *testing.T) {
	out, err := runTally(t, "pending", "--repo", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "tally init")
}
