// pkg/service/registry.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paystream/paystream/pkg/logging"
)

// Registry manages all services and their lifecycle
type Registry struct {
	services map[string]Service
	mutex    sync.RWMutex
	logger   *logging.Logger
}

// NewRegistry creates a new service registry
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		services: make(map[string]Service),
		logger:   logger,
	}
}

// Register adds a service to the registry
func (r *Registry) Register(service Service) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := service.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	r.services[name] = service
	r.logger.Info("Service registered", "name", name)
	return nil
}

// Get returns a service by name
func (r *Registry) Get(name string) (Service, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	return service, nil
}

// StartAll starts all services in dependency order
func (r *Registry) StartAll(ctx context.Context) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	order, err := topologicalSort(buildDependencyGraph(r.services))
	if err != nil {
		return fmt.Errorf("dependency cycle detected: %w", err)
	}

	for _, name := range order {
		service := r.services[name]
		r.logger.Info("Starting service", "name", name)

		if err := service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start service %s: %w", name, err)
		}

		if err := r.waitForHealth(ctx, service); err != nil {
			return err
		}
	}

	return nil
}

// StopAll stops all services in reverse dependency order
func (r *Registry) StopAll(ctx context.Context) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	order, err := topologicalSort(buildDependencyGraph(r.services))
	if err != nil {
		return fmt.Errorf("dependency cycle detected: %w", err)
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	for _, name := range order {
		service := r.services[name]
		r.logger.Info("Stopping service", "name", name)

		if err := service.Stop(ctx); err != nil {
			// Continue stopping the remaining services
			r.logger.Error("Error stopping service", "name", name, "error", err)
		}
	}

	return nil
}

// HealthCheck performs health checks on all registered services
func (r *Registry) HealthCheck() map[string]error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	results := make(map[string]error)
	for name, service := range r.services {
		results[name] = service.Health()
	}

	return results
}

// waitForHealth waits for a service to become healthy
func (r *Registry) waitForHealth(ctx context.Context, service Service) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.After(30 * time.Second)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for service %s to become healthy", service.Name())
		case <-ticker.C:
			if err := service.Health(); err == nil {
				return nil
			}
		}
	}
}

func buildDependencyGraph(services map[string]Service) map[string][]string {
	graph := make(map[string][]string)
	for name, service := range services {
		graph[name] = service.Dependencies()
	}
	return graph
}

// topologicalSort returns service names sorted so that every service
// appears after its dependencies.
func topologicalSort(graph map[string][]string) ([]string, error) {
	visited := make(map[string]bool)
	temp := make(map[string]bool)
	order := make([]string, 0, len(graph))

	var visit func(node string) error
	visit = func(node string) error {
		if temp[node] {
			return fmt.Errorf("dependency cycle involving service %s", node)
		}
		if visited[node] {
			return nil
		}

		temp[node] = true
		for _, dep := range graph[node] {
			// Dependencies outside the registry are assumed external
			if _, exists := graph[dep]; !exists {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[node] = true
		temp[node] = false

		order = append(order, node)
		return nil
	}

	for node := range graph {
		if !visited[node] {
			if err := visit(node); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}
