// Package app wires the stepforge services together.
package app

import (
	"fmt"

	"github.com/metalagman/stepforge/internal/catalog"
	"github.com/metalagman/stepforge/internal/component"
	"github.com/metalagman/stepforge/internal/config"
	"github.com/metalagman/stepforge/internal/materializer"
	"go.uber.org/fx"
)

// Services are the long-lived objects shared by CLI commands.
type Services struct {
	Config   config.Config
	Registry *materializer.Registry
	Compiler *component.Compiler
	Catalog  *catalog.Catalog
}

// Module provides the materializer registry, component compiler and the
// built-in step catalog.
var Module = fx.Module("stepforge",
	fx.Provide(
		materializer.Default,
		component.NewCompiler,
		newCatalog,
	),
)

func newCatalog(reg *materializer.Registry, compiler *component.Compiler) (*catalog.Catalog, error) {
	return catalog.Builtin(reg, compiler)
}

// New builds the services for cfg.
func New(cfg config.Config) (*Services, error) {
	svc := &Services{Config: cfg}
	app := fx.New(
		fx.NopLogger,
		Module,
		fx.Populate(&svc.Registry, &svc.Compiler, &svc.Catalog),
	)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	return svc, nil
}
