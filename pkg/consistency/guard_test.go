package consistency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	exists bool
	err    error
	calls  int
}

func (p *fakeProber) Exists(ctx context.Context, path string) (bool, error) {
	p.calls++
	return p.exists, p.err
}

type waitingProber struct {
	fakeProber
	waited []string
}

func (p *waitingProber) WaitForVisibility(ctx context.Context, path string) error {
	p.waited = append(p.waited, path)
	return nil
}

func TestNoOp(t *testing.T) {
	assert.NoError(t, NoOp{}.WaitForVisibility(context.Background(), "any/path"))
}

func TestGuardFunc(t *testing.T) {
	var got string
	g := GuardFunc(func(ctx context.Context, path string) error {
		got = path
		return ErrTimeout
	})

	err := g.WaitForVisibility(context.Background(), "a/b")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "a/b", got)
}

func TestForStore_PrefersNativeGuard(t *testing.T) {
	p := &waitingProber{}

	g := ForStore(p)
	require.NoError(t, g.WaitForVisibility(context.Background(), "x"))

	assert.Equal(t, []string{"x"}, p.waited)
	assert.Zero(t, p.calls)
}

func TestForStore_ProbeVisible(t *testing.T) {
	p := &fakeProber{exists: true}

	require.NoError(t, ForStore(p).WaitForVisibility(context.Background(), "x"))
	assert.Equal(t, 1, p.calls)
}

func TestForStore_ProbeMissing(t *testing.T) {
	p := &fakeProber{}

	err := ForStore(p).WaitForVisibility(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, p.calls)
}

func TestForStore_ProbeError(t *testing.T) {
	boom := errors.New("connection reset")
	p := &fakeProber{err: boom}

	err := ForStore(p).WaitForVisibility(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestForStore_ProbeErrorAfterDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProber{err: context.Canceled}

	err := ForStore(p).WaitForVisibility(ctx, "x")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}
