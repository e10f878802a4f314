package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(cluster *fakeCluster, cfg Config) *Controller {
	return NewController(cluster, cfg, testLogger())
}

func ownedPod(name, ownerKind, ownerName string) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			OwnerReferences: []metav1.OwnerReference{
				{Kind: ownerKind, Name: ownerName},
			},
		},
	}
}

func TestResolvePod_Direct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		cluster := &fakeCluster{
			pod: &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0"}},
		}
		c := newTestController(cluster, Config{PodName: "web-0", Namespace: "prod"})

		ref, err := c.resolvePod(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PodRef{Name: "web-0", Namespace: "prod"}, ref)
	})

	t.Run("not found", func(t *testing.T) {
		cluster := &fakeCluster{
			getPodFn: func(namespace, name string) (*corev1.Pod, error) {
				return nil, apierrors.NewNotFound(schema.GroupResource{Resource: "pods"}, name)
			},
		}
		c := newTestController(cluster, Config{PodName: "missing", Namespace: "prod"})

		_, err := c.resolvePod(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("namespace falls back to context namespace", func(t *testing.T) {
		cluster := &fakeCluster{
			defaultNS: "team-a",
			pod:       &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0"}},
		}
		c := newTestController(cluster, Config{PodName: "web-0"})

		ref, err := c.resolvePod(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "team-a", ref.Namespace)
	})
}

func TestResolvePod_ByController(t *testing.T) {
	pods := []corev1.Pod{
		ownedPod("agg-0", "StatefulSet", "aggregator"),
		ownedPod("agg-1", "StatefulSet", "aggregator"),
		ownedPod("front-abc12-x1", "ReplicaSet", "front-abc12"),
		ownedPod("frontend-abc12-x1", "ReplicaSet", "frontend-abc12"),
		ownedPod("logger-n1", "DaemonSet", "logger"),
		ownedPod("other-0", "StatefulSet", "other"),
	}

	tests := []struct {
		name       string
		controller string
		ctrlName   string
		wantPod    string
		wantErr    error
	}{
		{name: "statefulset exact owner match", controller: "sts", ctrlName: "aggregator", wantPod: "agg-0"},
		{name: "daemonset exact owner match", controller: "daemonset", ctrlName: "logger", wantPod: "logger-n1"},
		{name: "deployment via replicaset prefix", controller: "deployment", ctrlName: "frontend", wantPod: "frontend-abc12-x1"},
		{name: "deploy alias", controller: "deploy", ctrlName: "frontend", wantPod: "frontend-abc12-x1"},
		{name: "no matches", controller: "sts", ctrlName: "absent", wantErr: ErrNoMatchingPods},
		{name: "unknown controller type", controller: "job", ctrlName: "x", wantErr: ErrUnknownControllerType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster := &fakeCluster{podList: pods}
			c := newTestController(cluster, Config{
				Controller:     tt.controller,
				ControllerName: tt.ctrlName,
				Namespace:      "prod",
			})

			ref, err := c.resolvePod(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPod, ref.Name)
		})
	}

	t.Run("multiple matches selects first in listing order", func(t *testing.T) {
		cluster := &fakeCluster{podList: pods}
		c := newTestController(cluster, Config{
			Controller:     "sts",
			ControllerName: "aggregator",
			Namespace:      "prod",
		})

		ref, err := c.resolvePod(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "agg-0", ref.Name)
	})

	t.Run("deployment does not match unrelated replicaset prefix", func(t *testing.T) {
		// "front" must not match pods owned by "frontend-*" ReplicaSets:
		// the heuristic requires the "<name>-" boundary.
		cluster := &fakeCluster{podList: []corev1.Pod{
			ownedPod("frontend-abc12-x1", "ReplicaSet", "frontend-abc12"),
		}}
		c := newTestController(cluster, Config{
			Controller:     "deployment",
			ControllerName: "front",
			Namespace:      "prod",
		})

		_, err := c.resolvePod(context.Background())
		assert.ErrorIs(t, err, ErrNoMatchingPods)
	})
}

func TestParseControllerKind(t *testing.T) {
	for alias, want := range map[string]ControllerKind{
		"deployment":  KindDeployment,
		"deploy":      KindDeployment,
		"statefulset": KindStatefulSet,
		"sts":         KindStatefulSet,
		"daemonset":   KindDaemonSet,
		"ds":          KindDaemonSet,
		"STS":         KindStatefulSet,
	} {
		kind, err := ParseControllerKind(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, kind, alias)
	}

	_, err := ParseControllerKind("cronjob")
	assert.ErrorIs(t, err, ErrUnknownControllerType)
	assert.Contains(t, err.Error(), "sts")
}
