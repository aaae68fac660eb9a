// Package leader gates singleton work behind a Kubernetes Lease so that only
// one draftd replica serves the Discord command gateway at a time.
package leader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/jensholdgaard/draft-auction/internal/config"
)

// ClientFactory creates a Kubernetes clientset. Tests replace it.
var ClientFactory = func() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("building in-cluster config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return client, nil
}

// Task is work that must run on a single replica. It should block until ctx
// is done; ctx is cancelled when the lease is lost.
type Task func(ctx context.Context) error

// Gate runs a Task while this replica holds the lease.
type Gate struct {
	cfg    config.LeaderElectionConfig
	logger *slog.Logger
	id     string

	leading atomic.Bool

	mu     sync.Mutex
	holder string
}

// NewGate returns a Gate identified by POD_NAME, or the hostname outside a pod.
func NewGate(cfg config.LeaderElectionConfig, logger *slog.Logger) *Gate {
	return &Gate{cfg: cfg, logger: logger, id: identity()}
}

func identity() string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// Identity is the name this replica campaigns under.
func (g *Gate) Identity() string { return g.id }

// Leading reports whether this replica currently holds the lease.
func (g *Gate) Leading() bool { return g.leading.Load() }

// Holder returns the last observed lease holder, empty before the first
// observation.
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}

// Run campaigns for the lease until ctx is done and runs task whenever it is
// held. A replica that loses the lease campaigns again. A task error other
// than cancellation stops the campaign and is returned.
func (g *Gate) Run(ctx context.Context, task Task) error {
	g.logger.InfoContext(ctx, "starting leader election",
		slog.String("identity", g.id),
		slog.String("lease", g.cfg.LeaseName),
		slog.String("namespace", g.cfg.LeaseNamespace),
	)

	client, err := ClientFactory()
	if err != nil {
		return fmt.Errorf("leader election client: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		taskErrMu sync.Mutex
		taskErr   error
	)

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock: &resourcelock.LeaseLock{
			LeaseMeta: metav1.ObjectMeta{
				Name:      g.cfg.LeaseName,
				Namespace: g.cfg.LeaseNamespace,
			},
			Client:     client.CoordinationV1(),
			LockConfig: resourcelock.ResourceLockConfig{Identity: g.id},
		},
		LeaseDuration:   g.cfg.LeaseDuration,
		RenewDeadline:   g.cfg.RenewDeadline,
		RetryPeriod:     g.cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leaseCtx context.Context) {
				g.leading.Store(true)
				g.logger.InfoContext(leaseCtx, "acquired draftd lease", slog.String("identity", g.id))
				if err := task(leaseCtx); err != nil && !errors.Is(err, context.Canceled) {
					taskErrMu.Lock()
					taskErr = err
					taskErrMu.Unlock()
					cancel()
				}
			},
			OnStoppedLeading: func() {
				g.leading.Store(false)
				g.logger.Info("released draftd lease", slog.String("identity", g.id))
			},
			OnNewLeader: func(holder string) {
				g.mu.Lock()
				g.holder = holder
				g.mu.Unlock()
				if holder != g.id {
					g.logger.Info("draftd lease held elsewhere", slog.String("holder", holder))
				}
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configuring leader election: %w", err)
	}

	for runCtx.Err() == nil {
		elector.Run(runCtx)
	}

	taskErrMu.Lock()
	defer taskErrMu.Unlock()
	if taskErr != nil {
		return fmt.Errorf("leader task: %w", taskErr)
	}
	return nil
}
