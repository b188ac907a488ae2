package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

func (r *recorder) svc(name string, deps ...string) *Func {
	return &Func{
		ID:      name,
		Deps:    deps,
		OnInit:  func() error { r.events = append(r.events, "init "+name); return nil },
		OnStart: func(context.Context) error { r.events = append(r.events, "start "+name); return nil },
		OnStop:  func() error { r.events = append(r.events, "stop "+name); return nil },
	}
}

func TestHub_DependencyOrder(t *testing.T) {
	rec := &recorder{}
	h := NewHub(nil)
	require.NoError(t, h.Register(rec.svc("telemetry", "render")))
	require.NoError(t, h.Register(rec.svc("render")))
	require.NoError(t, h.Register(rec.svc("config")))
	require.NoError(t, h.Register(rec.svc("preview", "render", "config")))

	require.NoError(t, h.InitAll())
	assert.Equal(t, []string{"config", "render", "preview", "telemetry"}, h.Order())

	require.NoError(t, h.StartAll(context.Background()))
	require.NoError(t, h.StopAll())
	assert.Equal(t, []string{
		"init config", "init render", "init preview", "init telemetry",
		"start config", "start render", "start preview", "start telemetry",
		"stop telemetry", "stop preview", "stop render", "stop config",
	}, rec.events)
}

func TestHub_InitFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	h := NewHub(nil)
	require.NoError(t, h.Register(rec.svc("a")))
	bad := rec.svc("b", "a")
	bad.OnInit = func() error { return errors.New("no device") }
	require.NoError(t, h.Register(bad))

	err := h.InitAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service b init failed")
	assert.Equal(t, []string{"init a", "stop a"}, rec.events)
	assert.Error(t, h.StartAll(context.Background()))
}

func TestHub_StartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	h := NewHub(nil)
	require.NoError(t, h.Register(rec.svc("a")))
	bad := rec.svc("b", "a")
	bad.OnStart = func(context.Context) error { return errors.New("port in use") }
	require.NoError(t, h.Register(bad))

	require.NoError(t, h.InitAll())
	require.Error(t, h.StartAll(context.Background()))
	assert.Equal(t, []string{"init a", "init b", "start a", "stop a"}, rec.events)
}

func TestHub_StopJoinsErrors(t *testing.T) {
	h := NewHub(nil)
	stopErr := errors.New("flush failed")
	require.NoError(t, h.Register(&Func{ID: "a", OnStop: func() error { return stopErr }}))
	require.NoError(t, h.Register(&Func{ID: "b"}))
	require.NoError(t, h.InitAll())
	require.NoError(t, h.StartAll(context.Background()))

	assert.ErrorIs(t, h.StopAll(), stopErr)
	assert.NoError(t, h.StopAll(), "second stop has nothing to do")
}

func TestHub_Errors(t *testing.T) {
	h := NewHub(nil)
	require.NoError(t, h.Register(&Func{ID: "a", Deps: []string{"b"}}))
	assert.Error(t, h.Register(&Func{ID: "a"}))
	assert.ErrorContains(t, h.InitAll(), "unregistered service: b")

	require.NoError(t, h.Register(&Func{ID: "b", Deps: []string{"a"}}))
	assert.ErrorContains(t, h.InitAll(), "circular dependency")
}

func TestLookup(t *testing.T) {
	h := NewHub(nil)
	require.NoError(t, h.Register(&Func{ID: "a"}))

	f, err := Lookup[*Func](h, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", f.Name())

	_, err = Lookup[*Func](h, "missing")
	assert.Error(t, err)
	_, err = Lookup[interface{ Extra() }](h, "a")
	assert.ErrorContains(t, err, "type mismatch")
}
