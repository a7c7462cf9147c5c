package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ecowatch/internal/location"
	"github.com/roach88/ecowatch/internal/notify"
	"github.com/roach88/ecowatch/internal/remote/memory"
	"github.com/roach88/ecowatch/internal/sensor"
	"github.com/roach88/ecowatch/internal/testutil"
)

// firstCreatedAt is 2023-11-14T22:13:20Z, the first reading of the test
// clock.
const firstCreatedAt = 1_700_000_000_000

const testConfig = `
pipeline:
  debounce: 5ms
  graceperiod: 0s
sensor:
  temperature: 5
  humidity: 50
location:
  geocoderurl: ""
`

// testEnv runs commands against one database, replica and alert sink.
type testEnv struct {
	t         *testing.T
	dir       string
	config    string
	db        string
	clock     *testutil.StepClock
	replica   *memory.Replica
	alerts    *notify.Memory
	locations location.Source
	sensors   sensor.Source
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "ecowatch.yaml")
	require.NoError(t, os.WriteFile(config, []byte(testConfig), 0o644))

	return &testEnv{
		t:       t,
		dir:     dir,
		config:  config,
		db:      filepath.Join(dir, "ecowatch.db"),
		clock:   testutil.NewStepClock(firstCreatedAt-1000, 1000),
		replica: memory.New(),
		alerts:  notify.NewMemory(),
	}
}

type runResult struct {
	stdout string
	stderr string
	code   int
}

func (e *testEnv) options() *RootOptions {
	return &RootOptions{
		Clock:     e.clock,
		Replica:   e.replica,
		Alerts:    e.alerts,
		Locations: e.locations,
		Sensors:   e.sensors,
	}
}

func (e *testEnv) args(args []string) []string {
	return append([]string{"--config", e.config, "--db", e.db}, args...)
}

// run executes one command with empty stdin.
func (e *testEnv) run(args ...string) runResult {
	return e.runWithInput("", args...)
}

func (e *testEnv) runWithInput(stdin string, args ...string) runResult {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), e.options(), e.args(args), strings.NewReader(stdin), &stdout, &stderr)
	return runResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// mustRun fails the test unless the command succeeds.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	res := e.run(args...)
	require.Equal(e.t, ExitSuccess, res.code, "stdout: %s\nstderr: %s", res.stdout, res.stderr)
	return res.stdout
}

// seed adds the three entries the golden files describe.
func (e *testEnv) seed() {
	e.t.Helper()
	e.mustRun("add", "--name", "Tree frog", "--habitat", "Rainforest",
		"--min-temp", "18", "--max-temp", "28", "--min-humidity", "70", "--address", "Pond 3")
	e.mustRun("add", "--name", "axolotl", "--status", "critically endangered", "--max-temp", "20")
	e.mustRun("add", "--name", "Newt", "--min-humidity", "40", "--max-humidity", "90")
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

func goldenFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join("testdata", "golden", name+".golden"))
	return string(data), err
}
