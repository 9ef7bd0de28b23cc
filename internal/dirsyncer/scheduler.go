package dirsyncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"

	"dirmirror/internal/log"
	"dirmirror/internal/model"
	"dirmirror/pkg/helpers/ut"
)

//CycleReport is the result of one synchronization cycle: the prune pass followed by the materialize pass.
type CycleReport struct {
	ID          uint64
	Prune       model.ReconcileOutcome
	Materialize model.ReconcileOutcome
	Took        time.Duration
}

//Clean reports whether neither pass produced an error.
func (c *CycleReport) Clean() bool {
	return c.Prune.Clean() && c.Materialize.Clean()
}

func (c *CycleReport) Canceled() bool {
	return c.Prune.Canceled || c.Materialize.Canceled
}

func (c *CycleReport) Operations() int {
	return c.Prune.Operations() + c.Materialize.Operations()
}

func (c *CycleReport) Errors() []model.ItemError {
	errs := make([]model.ItemError, 0, len(c.Prune.Errors)+len(c.Materialize.Errors))
	errs = append(errs, c.Prune.Errors...)
	return append(errs, c.Materialize.Errors...)
}

//Scheduler runs synchronization cycles of the replica tree against the source tree with a fixed pause between them.
type Scheduler struct {
	log         log.Logger
	reconciler  *Reconciler
	source      Tree
	replica     Tree
	period      time.Duration
	nextCycleID ut.IDGenerator
	failing     mapset.Set[string] // paths that failed in the previous cycle
}

func NewScheduler(logger log.Logger, reconciler *Reconciler, source, replica Tree, period time.Duration) *Scheduler {
	return &Scheduler{
		log:         logger,
		reconciler:  reconciler,
		source:      source,
		replica:     replica,
		period:      period,
		nextCycleID: ut.CreateUint64IDGenerator(),
		failing:     mapset.NewThreadUnsafeSet[string](),
	}
}

//Run performs cycles until ctx is done or a pass fails fatally. The pause is counted from the end of a cycle,
//so a slow cycle never makes the next ones pile up. Cancellation is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("synchronization started", log.String("source", s.source.Root),
		log.String("replica", s.replica.Root), log.Duration("period", s.period))

	timer := time.NewTimer(0) // the first cycle starts right away
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := s.RunCycle(ctx); err != nil {
				return err
			}
			timer.Reset(s.period)
		}
	}
}

//RunCycle performs one cycle. It returns an error only if a pass could not list its root.
func (s *Scheduler) RunCycle(ctx context.Context) (report CycleReport, err error) {
	report.ID = s.nextCycleID()
	start := time.Now()
	defer func() { report.Took = time.Since(start) }()
	s.log.Debug("synchronization cycle started", log.Uint64("cycleID", report.ID))

	// the prune pass deletes everything that has no counterpart in the source,
	// so it must not start when the source root itself is gone
	if err = s.source.checkRoot(); err != nil {
		report.Prune = model.NewReconcileOutcome(model.ModeCheck, s.replica.Root)
		report.Prune.Fatal = fmt.Errorf("%w: %q: %w", ErrRootUnlistable, s.source.Root, err)
		s.log.Error("source directory is not accessible, synchronization cycle aborted",
			log.Uint64("cycleID", report.ID), log.Cause(err))
		return report, report.Prune.Fatal
	}

	report.Prune = s.reconciler.Reconcile(ctx, s.replica, s.source, model.ModeCheck)
	if report.Prune.Failed() {
		return report, report.Prune.Fatal
	}

	report.Materialize = model.NewReconcileOutcome(model.ModeCopy, s.source.Root)
	if report.Prune.Canceled {
		report.Materialize.Canceled = true
	} else {
		report.Materialize = s.reconciler.Reconcile(ctx, s.source, s.replica, model.ModeCopy)
		if report.Materialize.Failed() {
			return report, report.Materialize.Fatal
		}
	}

	s.judge(&report, time.Since(start))
	return report, nil
}

func (s *Scheduler) judge(report *CycleReport, took time.Duration) {
	fields := []log.Field{
		log.Uint64("cycleID", report.ID),
		log.Int("created", report.Prune.Created+report.Materialize.Created),
		log.Int("copied", report.Materialize.Copied),
		log.Int("deleted", report.Prune.Deleted),
		log.String("transferred", humanize.Bytes(uint64(report.Materialize.BytesCopied))),
		log.Duration("took", took),
	}

	switch {
	case report.Canceled():
		s.log.Info("synchronization cycle interrupted", fields...)
		return
	case report.Clean():
		s.log.Info("synchronization cycle completed successfully", fields...)
	default:
		s.log.Info("synchronization cycle completed unsuccessfully, please check logged errors",
			append(fields, log.Int("errors", len(report.Errors())))...)
	}

	failing := mapset.NewThreadUnsafeSet[string]()
	for _, itemErr := range report.Errors() {
		failing.Add(itemErr.Path)
	}
	if recurring := failing.Intersect(s.failing); recurring.Cardinality() > 0 {
		paths := recurring.ToSlice()
		sort.Strings(paths)
		s.log.Warn("items keep failing", log.Uint64("cycleID", report.ID), log.Strings("paths", paths))
	}
	s.failing = failing
}
