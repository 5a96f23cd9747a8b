// pkg/remediation/dispatcher.go

package remediation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory is returned for categories with no routine.
	ErrUnknownCategory = errors.New("unknown remediation category")

	// ErrNoFixAvailable is returned when the probe reported nothing the
	// category's routine could act on.
	ErrNoFixAvailable = errors.New("no automatic fix available")
)

// Remediator applies one class of fix to the host. A nil error means the
// change was applied or the condition was already satisfied.
type Remediator interface {
	Remediate(ctx context.Context, req Request) error
}

// RemediatorFunc adapts a function to the Remediator interface.
type RemediatorFunc func(ctx context.Context, req Request) error

// Remediate calls f.
func (f RemediatorFunc) Remediate(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Outcome describes what a dispatch did.
type Outcome struct {
	// Category is the category that was dispatched.
	Category Category

	// Attempted is true when at least one routine was invoked.
	Attempted bool

	// Succeeded is true when every invoked routine returned nil.
	Succeeded bool

	// Invoked lists the routines run, in order.
	Invoked []Category

	// RequiresReboot is set when an applied change needs a fresh session.
	RequiresReboot bool

	// Err joins the errors of failed routines, or explains why nothing ran.
	Err error
}

// Dispatcher maps categories to remediation routines.
type Dispatcher struct {
	routines map[Category]Remediator
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{routines: make(map[Category]Remediator)}
}

// Register binds a routine to a leaf category. Composite and sentinel
// categories cannot be bound.
func (d *Dispatcher) Register(c Category, r Remediator) error {
	switch c {
	case Locale, Ulimits, Packages, Repositories, Java, TimeSync:
		d.routines[c] = r
		return nil
	case None, Software, Unknown:
		return fmt.Errorf("%w: %s cannot be registered", ErrUnknownCategory, c)
	}
	return fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
}

// Plan returns the requests Dispatch would execute for category, in
// execution order. An error means nothing would run and the check needs
// manual intervention.
func (d *Dispatcher) Plan(c Category, fixes []Request) ([]Request, error) {
	switch c {
	case Locale, Ulimits, Packages, Repositories, Java, TimeSync:
		if _, ok := d.routines[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
		}
		req, ok := findRequest(fixes, c)
		if !ok {
			return nil, fmt.Errorf("%w for %s", ErrNoFixAvailable, c)
		}
		return []Request{req}, nil
	case Software:
		var plan []Request
		for _, leaf := range softwareOrder {
			req, ok := findRequest(fixes, leaf)
			if !ok {
				continue
			}
			if _, registered := d.routines[leaf]; !registered {
				continue
			}
			plan = append(plan, req)
		}
		if len(plan) == 0 {
			return nil, fmt.Errorf("%w for %s", ErrNoFixAvailable, c)
		}
		return plan, nil
	case None, Unknown:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
}

// Dispatch runs the routines planned for category. Each planned routine is
// invoked exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, c Category, fixes []Request) Outcome {
	out := Outcome{Category: c}

	plan, err := d.Plan(c, fixes)
	if err != nil {
		out.Err = err
		return out
	}

	var errs []error
	for _, req := range plan {
		out.Attempted = true
		out.Invoked = append(out.Invoked, req.Category)

		if err := d.routines[req.Category].Remediate(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.Category, err))
			continue
		}
		if req.Category.ImpliesReboot() {
			out.RequiresReboot = true
		}
	}

	out.Err = errors.Join(errs...)
	out.Succeeded = out.Attempted && out.Err == nil
	return out
}

// Remediate runs a single request directly, without a probe in front of
// it. Used by the remediate command, where the category comes from the
// operator.
func (d *Dispatcher) Remediate(ctx context.Context, req Request) Outcome {
	return d.Dispatch(ctx, req.Category, []Request{req})
}

func findRequest(fixes []Request, c Category) (Request, bool) {
	for _, req := range fixes {
		if req.Category == c {
			return req, true
		}
	}
	return Request{}, false
}
