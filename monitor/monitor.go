// Package monitor tails node log streams and feeds complete log messages
// to an error reporter for classification.
//
// Server logs interleave single-line messages with multi-line stack
// traces. The monitor collates continuation lines into the message they
// belong to, so classifiers always see whole messages. Line numbers keep
// counting across stream reopens, which keeps reported positions unique
// for the lifetime of a scenario even when a killed container forces the
// follow process to be restarted.
package monitor

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// StreamOpener attaches a follow stream to one node's log output.
//
// cluster.LogSource implements this interface.
type StreamOpener interface {
	Open(ctx context.Context, node string) (io.ReadCloser, error)
}

// LogMonitor follows one node's log stream.
type LogMonitor struct {
	opener      StreamOpener
	node        string
	reporter    stress.ErrorReporter
	logger      types.Logger
	headerRe    *regexp.Regexp
	reopenDelay time.Duration

	mu      sync.Mutex
	stream  io.ReadCloser
	lineNo  int
	msgLine int
	msg     []string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// LogMonitorOption configures a LogMonitor.
type LogMonitorOption func(*LogMonitor)

// WithMonitorLogger sets the monitor's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - LogMonitorOption: Configuration option
func WithMonitorLogger(logger types.Logger) LogMonitorOption {
	return func(m *LogMonitor) {
		m.logger = logger
	}
}

// WithReopenDelay sets the pause before reattaching a closed stream.
//
// Parameters:
//   - delay: Reopen delay (default: 500ms)
//
// Returns:
//   - LogMonitorOption: Configuration option
func WithReopenDelay(delay time.Duration) LogMonitorOption {
	return func(m *LogMonitor) {
		m.reopenDelay = delay
	}
}

// NewLogMonitor creates a LogMonitor for one node.
//
// Parameters:
//   - opener: Source of follow streams
//   - node: Node name, used to recognise message headers in the stream
//   - reporter: Receiver of complete log messages
//   - opts: Optional configuration options
//
// Returns:
//   - *LogMonitor: The monitor
func NewLogMonitor(opener StreamOpener, node string, reporter stress.ErrorReporter, opts ...LogMonitorOption) *LogMonitor {
	m := &LogMonitor{
		opener:      opener,
		node:        node,
		reporter:    reporter,
		logger:      logging.NewNopLogger(),
		reopenDelay: 500 * time.Millisecond,
		// A message header is the compose service prefix followed by a
		// timestamped log line. Anything else is a continuation.
		headerRe: regexp.MustCompile(`^.*` + regexp.QuoteMeta(node) + `.*\| \d{4}-\d{2}-\d{2} `),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start attaches to the node's log stream and begins scanning.
//
// The stream is reattached automatically when it ends, which happens when
// a container is killed out from under the follow process.
//
// Parameters:
//   - ctx: Context bounding the monitor
func (m *LogMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(runCtx)
}

// Stop detaches from the stream and flushes any partly collated message.
func (m *LogMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.started = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	// The stream read is taken after cancellation so the scanner either
	// never attaches another stream or gets this one closed under it.
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.flushLocked()
	m.mu.Unlock()
}

func (m *LogMonitor) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		stream, err := m.opener.Open(ctx, m.node)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("opening log stream failed, will retry", "node", m.node, "error", err)
		} else {
			m.mu.Lock()
			if ctx.Err() != nil {
				m.mu.Unlock()
				stream.Close()
				return
			}
			m.stream = stream
			m.mu.Unlock()

			m.scan(stream)
			stream.Close()

			m.mu.Lock()
			m.stream = nil
			m.mu.Unlock()
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.reopenDelay):
		}
		m.logger.Debug("reattaching log stream", "node", m.node)
	}
}

func (m *LogMonitor) scan(stream io.Reader) {
	scanner := bufio.NewScanner(stream)
	// Stack traces run long; a 64KB line is not unusual.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		m.mu.Lock()
		m.lineNo++
		line := scanner.Text()
		if m.headerRe.MatchString(line) {
			m.flushLocked()
			m.msgLine = m.lineNo
			m.msg = []string{line}
		} else if len(m.msg) > 0 {
			m.msg = append(m.msg, line)
		}
		// Lines before the first header are follow-process noise.
		m.mu.Unlock()
	}
}

// flushLocked reports the collated message, if any. Callers hold m.mu.
func (m *LogMonitor) flushLocked() {
	if len(m.msg) == 0 {
		return
	}
	m.reporter.ReportError(m.msgLine, strings.Join(m.msg, "\n"))
	m.msg = nil
}
