package build

import (
	"context"
	"fmt"
)

// Phase is the lifecycle state of a driver.
type Phase string

const (
	PhaseNew    Phase = "new"
	PhaseSetup  Phase = "setup"
	PhaseBuilt  Phase = "built"
	PhaseFailed Phase = "failed"
)

// PhasedDriver enforces the new -> setup -> built sequence on a driver. A
// failing phase moves it to failed, after which every call is refused.
type PhasedDriver struct {
	driver Driver
	phase  Phase
}

var _ Driver = (*PhasedDriver)(nil)

func NewPhasedDriver(driver Driver) *PhasedDriver {
	return &PhasedDriver{driver: driver, phase: PhaseNew}
}

// Phase returns the current state.
func (p *PhasedDriver) Phase() Phase {
	return p.phase
}

func (p *PhasedDriver) Setup(ctx context.Context) error {
	return p.advance(ctx, "setup", PhaseNew, PhaseSetup, p.driver.Setup)
}

func (p *PhasedDriver) Build(ctx context.Context) error {
	return p.advance(ctx, "build", PhaseSetup, PhaseBuilt, p.driver.Build)
}

func (p *PhasedDriver) advance(ctx context.Context, name string, from, to Phase, run func(context.Context) error) error {
	if p.phase != from {
		return fmt.Errorf("%s requested in phase %s: %w", name, p.phase, ErrPhaseOrder)
	}
	if err := run(ctx); err != nil {
		p.phase = PhaseFailed
		return err
	}
	p.phase = to
	return nil
}
