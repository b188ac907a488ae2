package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Hub owns the registered services and drives their lifecycle
type Hub struct {
	mu       sync.Mutex
	services map[string]Service
	sorted   []string // Dependency order, computed on InitAll
	inited   []string
	started  []string // Services that completed Start, for rollback
	log      *slog.Logger
}

// NewHub creates an empty hub; nil log uses slog.Default
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		services: make(map[string]Service),
		log:      log,
	}
}

// Register adds a service; names must be unique
func (h *Hub) Register(svc Service) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := svc.Name()
	if _, exists := h.services[name]; exists {
		return fmt.Errorf("service already registered: %s", name)
	}
	h.services[name] = svc
	h.sorted = nil
	return nil
}

// Get retrieves a service by name
func (h *Hub) Get(name string) (Service, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	svc, ok := h.services[name]
	return svc, ok
}

// Lookup retrieves a service by name as type T
func Lookup[T any](h *Hub, name string) (T, error) {
	var zero T
	svc, ok := h.Get(name)
	if !ok {
		return zero, fmt.Errorf("service not found: %s", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %s: type mismatch, got %T", name, svc)
	}
	return typed, nil
}

// Order returns the dependency order of the last InitAll
func (h *Hub) Order() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sorted...)
}

// InitAll resolves dependencies and initializes every service
// On failure, already-initialized services are stopped in reverse order
func (h *Hub) InitAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	order, err := h.topologicalSort()
	if err != nil {
		return err
	}
	h.sorted = order
	h.inited = nil

	for _, name := range h.sorted {
		if err := h.services[name].Init(); err != nil {
			h.rollback(h.inited)
			h.inited = nil
			return fmt.Errorf("service %s init failed: %w", name, err)
		}
		h.inited = append(h.inited, name)
		h.log.Debug("service initialized", "service", name)
	}
	return nil
}

// StartAll starts every service in dependency order
// On failure, already-started services are stopped in reverse order
func (h *Hub) StartAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.inited) != len(h.services) {
		return errors.New("services not initialized")
	}
	h.started = nil
	for _, name := range h.sorted {
		if err := h.services[name].Start(ctx); err != nil {
			h.rollback(h.started)
			h.started = nil
			return fmt.Errorf("service %s start failed: %w", name, err)
		}
		h.started = append(h.started, name)
		h.log.Info("service started", "service", name)
	}
	return nil
}

// StopAll stops initialized services in reverse dependency order
// Every service gets Stop called; errors are joined
func (h *Hub) StopAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for i := len(h.inited) - 1; i >= 0; i-- {
		name := h.inited[i]
		if err := h.services[name].Stop(); err != nil {
			h.log.Warn("service stop failed", "service", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	h.inited, h.started = nil, nil
	return errors.Join(errs...)
}

func (h *Hub) rollback(names []string) {
	for i := len(names) - 1; i >= 0; i-- {
		if err := h.services[names[i]].Stop(); err != nil {
			h.log.Warn("service rollback stop failed", "service", names[i], "err", err)
		}
	}
}

// topologicalSort computes init order with Kahn's algorithm
// Ties break by name so the order is stable across runs
func (h *Hub) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(h.services))
	dependents := make(map[string][]string)

	for name := range h.services {
		inDegree[name] = 0
	}
	for name, svc := range h.services {
		for _, dep := range svc.Dependencies() {
			if _, exists := h.services[dep]; !exists {
				return nil, fmt.Errorf("service %s depends on unregistered service: %s", name, dep)
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(h.services))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		result = append(result, name)

		var next []string
		for _, d := range dependents[name] {
			inDegree[d]--
			if inDegree[d] == 0 {
				next = append(next, d)
			}
		}
		sort.Strings(next)
		ready = append(ready, next...)
	}

	if len(result) != len(h.services) {
		return nil, errors.New("circular dependency detected in services")
	}
	return result, nil
}
