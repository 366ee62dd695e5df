// Package sandbox is the Secure Executor: it launches a disposable,
// isolated execution context for exactly one payload, enforces resource
// limits, captures output, and guarantees cleanup on every exit path.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	executor "github.com/avb-is-me/codespace-executor"
)

// workDirPrefix is the reserved name prefix used for every Sandbox's
// working directory, so a startup reclamation sweep can identify orphans
// left behind by a prior crash (see Sweep).
const workDirPrefix = "execsec-"

// Limits bounds one Sandbox's resource consumption. Zero means "use the
// runner's configured default" for that field.
type Limits struct {
	MemoryBytes int64
	CPUShare    int64
	WallClockMs int64
}

// Sandbox is the live isolation context for exactly one payload. It is
// created per execution and destroyed — including its working directory —
// on any exit path.
type Sandbox struct {
	ID            string
	WorkDir       string
	EnvVars       map[string]string
	Limits        Limits
	Mode          executor.ExecutionMode
	ProxyEndpoint string

	root string
}

// New creates a Sandbox rooted under root (the working-directory root on
// host). The caller must call Close to release the working directory;
// Close is safe to call more than once.
func New(root string, mode executor.ExecutionMode, limits Limits, proxyEndpoint string, envVars map[string]string) (*Sandbox, error) {
	id := workDirPrefix + uuid.NewString()
	workDir := filepath.Join(root, id)
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, &executor.ExecutionError{Kind: executor.KindStartFailed, Op: "sandbox.mkdir", Err: err}
	}
	return &Sandbox{
		ID:            id,
		WorkDir:       workDir,
		EnvVars:       envVars,
		Limits:        limits,
		Mode:          mode,
		ProxyEndpoint: proxyEndpoint,
		root:          root,
	}, nil
}

var closeOnce sync.Map // ID -> *sync.Once, guards double-cleanup across retries

// Close releases the Sandbox's working directory and any other host-side
// resources tied to its execution id. It must be called on every exit path
// (success, failure, timeout, or crash recovery via Sweep).
func (s *Sandbox) Close() error {
	onceAny, _ := closeOnce.LoadOrStore(s.ID, &sync.Once{})
	once := onceAny.(*sync.Once)
	var err error
	once.Do(func() {
		err = os.RemoveAll(s.WorkDir)
		closeOnce.Delete(s.ID)
	})
	return err
}

// Deadline computes the wall-clock deadline for this Sandbox, used by a
// Runner to send a terminate signal.
func (s *Sandbox) Deadline() time.Duration {
	if s.Limits.WallClockMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Limits.WallClockMs) * time.Millisecond
}

// WithDeadline returns a context bounded by this Sandbox's wall-clock
// limit, alongside its cancel func.
func (s *Sandbox) WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.Deadline())
}

func (s *Sandbox) String() string {
	return fmt.Sprintf("sandbox[%s mode=%s]", s.ID, s.Mode)
}
