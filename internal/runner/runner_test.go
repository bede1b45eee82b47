//go:build linux || darwin || freebsd || netbsd || openbsd

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	r := New()
	out := r.Run(context.Background(), []string{"sh", "-c", "echo hello; echo ignored >&2"})

	require.False(t, out.Failed())
	assert.Equal(t, "hello\n", *out.Stdout)
	assert.Nil(t, out.Stderr)
}

func TestRunNonZeroExitCombinesStreams(t *testing.T) {
	r := New()
	out := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2; exit 3"})

	require.True(t, out.Failed())
	assert.Nil(t, out.Stdout)
	assert.Equal(t, "out\n\nerr", *out.Stderr)
}

func TestRunNonZeroExitWithoutOutput(t *testing.T) {
	out := New().Run(context.Background(), []string{"sh", "-c", "exit 2"})

	require.True(t, out.Failed())
	assert.Equal(t, "Command exited with status 2", out.ErrorMessage())
}

func TestRunTimeout(t *testing.T) {
	r := New(WithTimeout(300 * time.Millisecond))

	start := time.Now()
	out := r.Run(context.Background(), []string{"sleep", "30"})
	elapsed := time.Since(start)

	require.True(t, out.Failed())
	assert.Equal(t, "Error: Command timed out after 0.3 seconds.", out.ErrorMessage())
	assert.Less(t, elapsed, 5*time.Second)
}

func TestRunParentDeadlineIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := New().Run(ctx, []string{"sleep", "30"})

	require.True(t, out.Failed())
	assert.Equal(t, "Error: Command canceled before completion (context deadline exceeded).", out.ErrorMessage())
}

func TestExecCanceledSentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := New().Exec(ctx, []string{"sleep", "10"})
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	r := New(WithTimeout(300 * time.Millisecond))

	// The shell forks a grandchild that would outlive a plain kill of the shell
	script := "sleep 30 & echo $! > " + pidFile + "; wait"
	out := r.Run(context.Background(), []string{"sh", "-c", script})
	require.True(t, out.Failed())

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return processGone(pid)
	}, 3*time.Second, 50*time.Millisecond, "grandchild %d still running", pid)
}

// processGone treats unreaped zombies as gone
func processGone(pid int) bool {
	if errors.Is(syscall.Kill(pid, 0), syscall.ESRCH) {
		return true
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	fields := strings.Fields(string(stat))
	return len(fields) > 2 && fields[2] == "Z"
}

func TestRunLaunchFailure(t *testing.T) {
	out := New().Run(context.Background(), []string{"/nonexistent/neti-binary"})

	require.True(t, out.Failed())
	assert.True(t, strings.HasPrefix(out.ErrorMessage(), "An unexpected error occurred: "))
}

func TestRunEmptyCommand(t *testing.T) {
	out := New().Run(context.Background(), nil)

	require.True(t, out.Failed())
	assert.Equal(t, "An unexpected error occurred: empty command", out.ErrorMessage())
}

func TestRunArgumentsAreNotShellParsed(t *testing.T) {
	out := New().Run(context.Background(), []string{"echo", "a; echo injected"})

	require.False(t, out.Failed())
	assert.Equal(t, "a; echo injected\n", out.Text())
}

func TestExecReportsExitCode(t *testing.T) {
	res, err := New().Exec(context.Background(), []string{"sh", "-c", "printf x; exit 5"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.ExitCode)
	assert.Equal(t, "x", res.Stdout)
}

func TestExecTimeoutSentinel(t *testing.T) {
	_, err := New(WithTimeout(100*time.Millisecond)).Exec(context.Background(), []string{"sleep", "10"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTimeoutMessage(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "Error: Command timed out after 30 seconds."},
		{time.Minute, "Error: Command timed out after 60 seconds."},
		{1500 * time.Millisecond, "Error: Command timed out after 1.5 seconds."},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, TimeoutMessage(tt.d))
		})
	}
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New(WithTimeout(0)).Timeout())
	assert.Equal(t, DefaultTimeout, New(WithTimeout(-time.Second)).Timeout())
}
