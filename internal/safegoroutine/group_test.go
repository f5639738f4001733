package safegoroutine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/florinutz/icelake/metrics"
)

func TestGroup_NormalExecution(t *testing.T) {
	g, _ := WithContext(context.Background(), nil)
	g.Go("ok", func() error { return nil })
	if err := g.Wait(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestGroup_PanicRecovery(t *testing.T) {
	before := promtest.ToFloat64(metrics.PanicsRecovered.WithLabelValues("refresher"))

	g, ctx := WithContext(context.Background(), nil)
	g.Go("refresher", func() error {
		panic("nil map write")
	})
	err := g.Wait()
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if !strings.Contains(err.Error(), "panic in refresher") || !strings.Contains(err.Error(), "nil map write") {
		t.Fatalf("error = %q, want goroutine name and panic value", err)
	}
	if ctx.Err() == nil {
		t.Error("group context not cancelled after panic")
	}
	if got := promtest.ToFloat64(metrics.PanicsRecovered.WithLabelValues("refresher")) - before; got != 1 {
		t.Errorf("panics recovered delta = %v, want 1", got)
	}
}

func TestGroup_ErrorPropagation(t *testing.T) {
	g, _ := WithContext(context.Background(), nil)
	expected := errors.New("listen failed")
	g.Go("http", func() error { return expected })
	if err := g.Wait(); !errors.Is(err, expected) {
		t.Fatalf("expected %v, got %v", expected, err)
	}
}

func TestGroup_SetLimit(t *testing.T) {
	g, _ := WithContext(context.Background(), nil)
	g.SetLimit(2)

	var running, peak atomic.Int32
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		g.Go("verify", func() error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		})
		if i == 1 {
			close(release)
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}
