package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fortressi/sagaflow"
	"github.com/fortressi/sagaflow/order"
)

type runOptions struct {
	customer string
	amount   int64
	runs     int
	parallel int
}

func newRunCommand(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check out one or more orders",
		Long: `Check out orders through the configured saga. Each order either ends
Confirmed with every effect applied, or is compensated back to Pending.
The command exits non-zero when any saga failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.run(cmd.Context(), cmd.OutOrStdout(), opts)
			if err != nil {
				// PersistentPostRun is skipped when RunE fails.
				a.syncLogger()
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.customer, "customer", "customer-1", "customer id placed on every order")
	f.Int64Var(&opts.amount, "amount", 1000, "order amount in minor currency units")
	f.IntVar(&opts.runs, "runs", 1, "number of orders to check out")
	f.IntVar(&opts.parallel, "parallel", 1, "maximum number of sagas running at once")
	f.StringSlice("fail-step", nil, "steps whose forward action fails")
	f.StringSlice("fail-compensation", nil, "steps whose compensating action fails")
	f.Duration("latency", 0, "simulated latency of every collaborator call")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address until interrupted")

	a.bindFlag("simulation.fail_forward", f.Lookup("fail-step"))
	a.bindFlag("simulation.fail_compensation", f.Lookup("fail-compensation"))
	a.bindFlag("simulation.latency", f.Lookup("latency"))
	a.bindFlag("metrics.addr", f.Lookup("metrics-addr"))

	return cmd
}

type outcome struct {
	exec *sagaflow.Execution[*order.Order]
	err  error
}

func (a *app) run(ctx context.Context, out io.Writer, opts *runOptions) error {
	if opts.runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", opts.runs)
	}
	if opts.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", opts.parallel)
	}

	orders := make([]*order.Order, opts.runs)
	for i := range orders {
		o, err := order.New(opts.customer, opts.amount)
		if err != nil {
			return err
		}
		orders[i] = o
	}

	cfg := a.cfg
	faults := order.NewFaultPlan(stepNames(cfg.Simulation.FailForward), stepNames(cfg.Simulation.FailCompensation))
	sim := order.NewSimulated(cfg.Simulation.Latency, faults)

	def, err := buildDefinition(cfg, sim)
	if err != nil {
		return err
	}
	if err := checkFaultTargets(def, cfg.Simulation); err != nil {
		return err
	}

	sink, closeSink, err := buildSink(cfg.DeadLetter)
	if err != nil {
		return err
	}
	defer closeSink()

	metrics, err := sagaflow.NewPrometheusMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	var serveErr <-chan error
	if cfg.Metrics.Addr != "" {
		srv := newMetricsServer(cfg.Metrics.Addr, metrics)
		serveErr = a.serve(srv)
		defer a.shutdown(srv)
	}

	orch := sagaflow.NewOrchestrator(def,
		sagaflow.WithLogger(a.logger),
		sagaflow.WithDeadLetterSink(sink),
		sagaflow.WithMetrics(metrics),
	)

	outcomes := make([]outcome, len(orders))
	var g errgroup.Group
	g.SetLimit(opts.parallel)
	for i, o := range orders {
		g.Go(func() error {
			exec := orch.NewExecution(o)
			outcomes[i] = outcome{exec: exec, err: exec.Execute(ctx)}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, oc := range outcomes {
		if oc.err != nil {
			failed++
		}
		printOutcome(out, oc)
	}

	if serveErr != nil {
		a.logger.Info("serving metrics until interrupted", zap.String("addr", cfg.Metrics.Addr))
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sagas failed", failed, len(outcomes))
	}
	return nil
}

func printOutcome(out io.Writer, oc outcome) {
	o := oc.exec.Entity()
	fmt.Fprintf(out, "order %s (customer %s, amount %d): %s\n", o.ID(), o.CustomerID, o.Amount, o.Status)
	fmt.Fprintf(out, "  saga:         %s %s\n", oc.exec.SagaID(), oc.exec.State())
	fmt.Fprintf(out, "  forward:      %s\n", joinNames(oc.exec.ForwardOrder()))

	var failure *sagaflow.SagaFailure
	switch {
	case oc.err == nil:
	case errors.As(oc.err, &failure):
		fmt.Fprintf(out, "  failed step:  %s\n", failure.FailedStep())
		fmt.Fprintf(out, "  error:        %v\n", failure)
		fmt.Fprintf(out, "  compensated:  %s\n", joinNames(oc.exec.CompensationOrder()))
		for _, compErr := range failure.CompensationErrors {
			fmt.Fprintf(out, "  dead letter:  %v\n", compErr)
		}
	default:
		fmt.Fprintf(out, "  error:        %v\n", oc.err)
	}

	flags := o.Flags()
	parts := make([]string, 0, len(order.DefaultSequence))
	for _, name := range order.DefaultSequence {
		parts = append(parts, fmt.Sprintf("%s=%t", name, flags[name]))
	}
	fmt.Fprintf(out, "  flags:        %s\n", strings.Join(parts, " "))

	if o.Consistent() && (failure == nil || failure.FullyCompensated()) {
		fmt.Fprintln(out, "  consistent:   yes")
	} else {
		fmt.Fprintln(out, "  consistent:   no, order needs manual reconciliation")
	}
}

func joinNames(names []sagaflow.StepName) string {
	if len(names) == 0 {
		return "-"
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, " -> ")
}

func newMetricsServer(addr string, metrics *sagaflow.PrometheusMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve starts srv in the background. The returned channel yields the
// listen error, if any, and is closed when the server stops.
func (a *app) serve(srv *http.Server) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.String("addr", srv.Addr), zap.Error(err))
			errCh <- err
		}
	}()
	return errCh
}

func (a *app) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics server shutdown failed", zap.Error(err))
	}
}
