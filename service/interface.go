// Package service runs the host's long-lived subsystems in dependency order.
package service

import "context"

// Service is the lifecycle of one infrastructure subsystem: render context, config watcher,
// telemetry server, terminal preview
//
// Lifecycle:
//  1. Construction
//  2. Init() - allocate resources; dependencies are already initialized
//  3. Start(ctx) - launch background goroutines bound to ctx
//  4. [runtime operation]
//  5. Stop() - halt goroutines, release resources
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init before this one
	Dependencies() []string

	// Init allocates resources
	Init() error

	// Start begins service operation; goroutines end when ctx ends or Stop is called
	Start(ctx context.Context) error

	// Stop halts service operation and releases resources
	// Must be idempotent
	Stop() error
}

// Func is a Service assembled from functions; nil functions are no-ops
type Func struct {
	ID      string
	Deps    []string
	OnInit  func() error
	OnStart func(ctx context.Context) error
	OnStop  func() error
}

// Name implements Service
func (f *Func) Name() string { return f.ID }

// Dependencies implements Service
func (f *Func) Dependencies() []string { return f.Deps }

// Init implements Service
func (f *Func) Init() error {
	if f.OnInit == nil {
		return nil
	}
	return f.OnInit()
}

// Start implements Service
func (f *Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

// Stop implements Service
func (f *Func) Stop() error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop()
}
