package graspable

import (
	"context"
	"sync"

	"go.viam.com/graspable/ros"
)

type fakePublisher[T any] struct {
	mu   sync.Mutex
	msgs []T
	err  error
}

func (f *fakePublisher[T]) Publish(ctx context.Context, msg T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher[T]) Messages() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.msgs...)
}

func (f *fakePublisher[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func newMarker(ns string, lateral, height float64, shape ros.MarkerType) *ros.Marker {
	return &ros.Marker{
		Ns:   ns,
		Type: shape,
		Pose: ros.Pose{
			Position:    ros.Point{X: 0.75, Y: lateral, Z: height},
			Orientation: ros.Quaternion{X: 0, Y: 0, Z: 0.3826834, W: 0.9238795},
		},
	}
}

// graspableMarker satisfies both reference policies.
func graspableMarker() *ros.Marker {
	return newMarker("surface_2_object_5_axes", 0.41, 0.90, ros.MarkerCylinder)
}
