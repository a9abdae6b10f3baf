package cluster

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// LogSource attaches follow streams to node containers.
//
// Each Open spawns "docker compose logs --follow" for one service; the
// returned reader yields the container's combined output until Close.
type LogSource struct {
	file   string
	dir    string
	logger types.Logger
}

// NewLogSource creates a LogSource for the compose project.
//
// Parameters:
//   - composeFile: Compose file describing the cluster
//   - projectDir: Working directory for compose invocations
//   - logger: Logger, or nil for no-op
//
// Returns:
//   - *LogSource: The log source
func NewLogSource(composeFile, projectDir string, logger types.Logger) *LogSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LogSource{file: composeFile, dir: projectDir, logger: logger}
}

// Open starts following one node's log output.
//
// The stream stays open across the container's restarts within the same
// compose lifecycle; it must be re-opened after a kill, since compose logs
// does not always survive an unclean container exit.
//
// Parameters:
//   - ctx: Context bounding the follow process
//   - node: Compose service name
//
// Returns:
//   - io.ReadCloser: The combined stdout/stderr stream
//   - error: Error if the follow process could not start
func (s *LogSource) Open(ctx context.Context, node string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "docker", "compose", "-f", s.file, "logs", node, "--follow", "--since", "0m")
	cmd.Dir = s.dir

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stress: creating log pipe for %s: %w", node, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &types.NodeError{Node: node, Operation: "open log stream", Cause: err}
	}
	// The child holds its own copy of the write end.
	pw.Close()

	s.logger.Debug("started log follow process", "node", node, "pid", cmd.Process.Pid)
	return &logStream{reader: pr, cmd: cmd}, nil
}

// logStream wraps the follow process's output pipe and tears the process
// down on Close.
type logStream struct {
	reader *os.File
	cmd    *exec.Cmd
}

// Read implements io.Reader.
func (l *logStream) Read(p []byte) (int, error) {
	return l.reader.Read(p)
}

// Close terminates the follow process and releases the pipe.
//
// docker compose does not reliably respond to SIGTERM, so the process
// gets SIGHUP first and SIGKILL if it lingers.
func (l *logStream) Close() error {
	_ = l.cmd.Process.Signal(syscall.SIGHUP)

	done := make(chan error, 1)
	go func() { done <- l.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = l.cmd.Process.Kill()
		<-done
	}
	return l.reader.Close()
}
