package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/fortressi/sagaflow"
	"github.com/fortressi/sagaflow/internal/config"
	"github.com/fortressi/sagaflow/order"
)

func stepNames(names []string) []sagaflow.StepName {
	out := make([]sagaflow.StepName, 0, len(names))
	for _, n := range names {
		out = append(out, sagaflow.StepName(n))
	}
	return out
}

func buildDefinition(cfg *config.Config, sim *order.Simulated) (*sagaflow.Definition[*order.Order], error) {
	return order.NewDefinitionFromNames(
		sagaflow.DefinitionName(cfg.Saga.Name),
		sim.Collaborators(),
		stepNames(cfg.Saga.Steps),
	)
}

var errUnknownFaultStep = errors.New("step not in saga")

// checkFaultTargets rejects fault-injection step names that are not part
// of def, so a typo cannot turn a failure run into a silent success.
func checkFaultTargets(def *sagaflow.Definition[*order.Order], sim config.Simulation) error {
	known := def.StepNames()
	var errs []error
	for flag, names := range map[string][]string{
		"fail-step":         sim.FailForward,
		"fail-compensation": sim.FailCompensation,
	} {
		for _, n := range names {
			if !slices.Contains(known, sagaflow.StepName(n)) {
				errs = append(errs, fmt.Errorf("--%s %q: %w %s", flag, n, errUnknownFaultStep, def.Name()))
			}
		}
	}
	return errors.Join(errs...)
}

// buildSink returns the configured dead-letter sink and a function
// releasing whatever it holds open.
func buildSink(cfg config.DeadLetter) (sagaflow.DeadLetterSink, func(), error) {
	switch cfg.Kind {
	case config.SinkMemory:
		return sagaflow.NewMemorySink(), func() {}, nil
	case config.SinkFile:
		sink, err := sagaflow.NewFileSink(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {}, nil
	case config.SinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		return sagaflow.NewRedisSink(client, cfg.Redis.Key), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown dead-letter sink kind %q", cfg.Kind)
}

var errNotPersistent = errors.New("the memory dead-letter sink does not persist letters; set deadletter.kind to file or redis")
