package leader_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/k3s"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/leader"
)

func k3sClient(t *testing.T, ctx context.Context) kubernetes.Interface {
	t.Helper()
	ctr, err := k3s.Run(ctx, "rancher/k3s:v1.31.6-k3s1")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting k3s container: %v", err)
	}
	kubeConfig, err := ctr.GetKubeConfig(ctx)
	if err != nil {
		t.Fatalf("getting kubeconfig: %v", err)
	}
	restCfg, err := clientcmd.RESTConfigFromKubeConfig(kubeConfig)
	if err != nil {
		t.Fatalf("building rest config: %v", err)
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		t.Fatalf("creating kubernetes client: %v", err)
	}
	return client
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func TestGate_K3s(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping k3s integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	client := k3sClient(t, ctx)
	orig := leader.ClientFactory
	leader.ClientFactory = func() (kubernetes.Interface, error) { return client, nil }
	t.Cleanup(func() { leader.ClientFactory = orig })

	cfg := config.LeaderElectionConfig{
		Enabled:        true,
		LeaseName:      "draftd-test-leader",
		LeaseNamespace: "default",
		LeaseDuration:  5 * time.Second,
		RenewDeadline:  3 * time.Second,
		RetryPeriod:    time.Second,
	}

	t.Run("serves while leading", func(t *testing.T) {
		t.Setenv("POD_NAME", "draftd-0")
		gate := leader.NewGate(cfg, slog.Default())

		runCtx, stop := context.WithCancel(ctx)
		defer stop()
		served := make(chan struct{})
		var once sync.Once
		errCh := make(chan error, 1)
		go func() {
			errCh <- gate.Run(runCtx, func(ctx context.Context) error {
				once.Do(func() { close(served) })
				<-ctx.Done()
				return ctx.Err()
			})
		}()

		select {
		case <-served:
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for the command gateway to start")
		}
		waitUntil(t, "lease holder", func() bool { return gate.Leading() && gate.Holder() == "draftd-0" })

		stop()
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for Run to return")
		}
		if gate.Leading() {
			t.Error("Leading() = true after shutdown")
		}
	})

	t.Run("task failure ends the campaign", func(t *testing.T) {
		t.Setenv("POD_NAME", "draftd-1")
		gate := leader.NewGate(cfg, slog.Default())
		boom := errors.New("gateway refused")

		errCh := make(chan error, 1)
		go func() {
			errCh <- gate.Run(ctx, func(context.Context) error { return boom })
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, boom) {
				t.Fatalf("Run() error = %v, want %v", err, boom)
			}
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for Run to return")
		}
	})
}
