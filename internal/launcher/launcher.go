// Package launcher drives a launch request against the provisioning API until
// it either yields running instances or fails with a non-retryable error.
// Capacity exhaustion is the only retryable condition: the launcher polls the
// live capacity snapshot, re-targeting the request at the first region that
// reports capacity, until the provider accepts the launch.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryg-dev/gpulaunch/internal/lambda"
)

// DefaultInterval is the pause between capacity polls. It exists for API
// rate-limit compliance, not correctness.
const DefaultInterval = 2 * time.Second

const (
	minQuantity = 1
	maxQuantity = 9
)

// API is the slice of the cloud client the launcher needs.
type API interface {
	Launch(ctx context.Context, p lambda.LaunchParams) ([]string, error)
	InstanceTypes(ctx context.Context) (map[string]lambda.InstanceTypeOffer, error)
}

// Request holds validated launch parameters. Immutable during a run: only the
// target region varies between attempts, and only when Region is empty.
type Request struct {
	Region         string
	InstanceType   string
	SSHKeyName     string
	FileSystemName string
	Quantity       int
}

// Validate rejects obviously bad parameters before any network call.
func (r Request) Validate() error {
	if r.InstanceType == "" {
		return errors.New("instance type is required")
	}
	if r.SSHKeyName == "" {
		return errors.New("ssh key name is required")
	}
	if r.Quantity < minQuantity || r.Quantity > maxQuantity {
		return fmt.Errorf("quantity %d out of range [%d,%d]", r.Quantity, minQuantity, maxQuantity)
	}
	return nil
}

func (r Request) params(region string) lambda.LaunchParams {
	p := lambda.LaunchParams{
		RegionName:       region,
		InstanceTypeName: r.InstanceType,
		SSHKeyNames:      []string{r.SSHKeyName},
		FileSystemNames:  []string{},
		Quantity:         r.Quantity,
	}
	if r.FileSystemName != "" {
		p.FileSystemNames = []string{r.FileSystemName}
	}
	return p
}

// Launcher runs launch requests with capacity retry. The zero value is not
// usable; set API.
type Launcher struct {
	API API

	// Interval between capacity polls; DefaultInterval when zero.
	Interval time.Duration

	// MaxWait bounds the total time spent retrying on capacity. Zero means
	// retry until the operator interrupts.
	MaxWait time.Duration

	Log zerolog.Logger

	// Sleep is swappable so tests can simulate time. Defaults to a
	// context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ErrWaitExceeded is returned when MaxWait elapses with capacity still
// exhausted.
var ErrWaitExceeded = errors.New("gave up waiting for capacity")

type state int

const (
	stateLaunching state = iota
	statePolling
	stateSucceeded
	stateFailed
)

// Run executes the request to completion. On success it returns the launched
// instance IDs. Any error other than insufficient capacity, including
// transport failures, is terminal and returned as-is. Cancel ctx to stop an
// unbounded wait.
func (l *Launcher) Run(ctx context.Context, req Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	var deadline time.Time
	if l.MaxWait > 0 {
		deadline = time.Now().Add(l.MaxWait)
	}

	region := req.Region
	attempts := 0
	polls := 0
	st := stateLaunching
	var ids []string
	var err error

	for {
		switch st {
		case stateLaunching:
			attempts++
			l.Log.Info().
				Str("instance_type", req.InstanceType).
				Str("region", region).
				Int("quantity", req.Quantity).
				Int("attempt", attempts).
				Msg("launching instances")
			ids, err = l.API.Launch(ctx, req.params(region))
			if err == nil {
				st = stateSucceeded
				break
			}
			var apiErr *lambda.APIError
			if errors.As(err, &apiErr) && apiErr.InsufficientCapacity() {
				l.Log.Info().
					Str("instance_type", req.InstanceType).
					Msg("insufficient capacity, watching for availability")
				// After a failed re-attempt, wait out the interval before
				// hitting the capacity endpoint again. The first poll after
				// the initial launch goes out immediately.
				if attempts > 1 {
					if serr := sleep(ctx, interval); serr != nil {
						err = serr
						st = stateFailed
						break
					}
				}
				st = statePolling
				break
			}
			st = stateFailed

		case statePolling:
			if !deadline.IsZero() && time.Now().After(deadline) {
				err = fmt.Errorf("%w for %s after %s", ErrWaitExceeded, req.InstanceType, l.MaxWait)
				st = stateFailed
				break
			}
			polls++
			offers, perr := l.API.InstanceTypes(ctx)
			if perr != nil {
				err = perr
				st = stateFailed
				break
			}
			if r, ok := pickRegion(offers, req.InstanceType, req.Region); ok {
				l.Log.Info().
					Str("instance_type", req.InstanceType).
					Str("region", r).
					Msg("capacity available, retrying launch")
				region = r
				st = stateLaunching
				break
			}
			l.Log.Debug().
				Str("instance_type", req.InstanceType).
				Dur("interval", interval).
				Msg("no capacity yet")
			if serr := sleep(ctx, interval); serr != nil {
				err = serr
				st = stateFailed
			}

		case stateSucceeded:
			l.Log.Info().
				Strs("instance_ids", ids).
				Int("attempts", attempts).
				Int("polls", polls).
				Msg("instances launched")
			return ids, nil

		case stateFailed:
			l.Log.Error().
				Err(err).
				Int("attempts", attempts).
				Int("polls", polls).
				Msg("launch failed")
			return nil, err
		}
	}
}

// pickRegion selects a launch target from the capacity snapshot. With no
// pinned region the first region in provider order wins; a pinned region is
// kept only while the snapshot still lists it.
func pickRegion(offers map[string]lambda.InstanceTypeOffer, instanceType, pinned string) (string, bool) {
	offer, ok := offers[instanceType]
	if !ok {
		return "", false
	}
	regions := offer.RegionsWithCapacityAvailable
	if len(regions) == 0 {
		return "", false
	}
	if pinned != "" {
		for _, r := range regions {
			if r.Name == pinned {
				return pinned, true
			}
		}
		return "", false
	}
	return regions[0].Name, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
