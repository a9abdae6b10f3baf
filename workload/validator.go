package workload

import (
	"context"
	"fmt"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/internal/metrics"
	"github.com/indexity-io/orientdb-stress/types"
)

// Validator checks that the cluster still accepts and persists writes
// after it has restabilized.
//
// It owns a dedicated record outside the generator's id range and runs a
// single read-update-reread cycle on it. If a Generator is attached, a
// failed workload fails validation as well.
type Validator struct {
	mgr      *RecordManager
	gen      *Generator
	kind     types.IndexKind
	readOnly bool
	logger   types.Logger
	metrics  types.MetricsCollector
}

// Compile-time assertion that Validator implements stress.Validator.
var _ stress.Validator = (*Validator)(nil)

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorWorkload attaches the generator whose health gates
// validation.
//
// Parameters:
//   - gen: The workload generator, or nil
//
// Returns:
//   - ValidatorOption: Configuration option
func WithValidatorWorkload(gen *Generator) ValidatorOption {
	return func(v *Validator) {
		v.gen = gen
	}
}

// WithValidatorIndexKind selects which indexed property validation
// writes.
//
// Parameters:
//   - kind: Index kind (default: types.IndexNotUnique)
//
// Returns:
//   - ValidatorOption: Configuration option
func WithValidatorIndexKind(kind types.IndexKind) ValidatorOption {
	return func(v *Validator) {
		v.kind = kind
	}
}

// WithValidatorReadOnly switches validation to a read-only probe.
//
// Returns:
//   - ValidatorOption: Configuration option
func WithValidatorReadOnly(readOnly bool) ValidatorOption {
	return func(v *Validator) {
		v.readOnly = readOnly
	}
}

// WithValidatorLogger sets the validator's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - ValidatorOption: Configuration option
func WithValidatorLogger(logger types.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithValidatorMetrics sets the validator's metrics collector.
//
// Parameters:
//   - collector: Metrics collector (default: no-op)
//
// Returns:
//   - ValidatorOption: Configuration option
func WithValidatorMetrics(collector types.MetricsCollector) ValidatorOption {
	return func(v *Validator) {
		v.metrics = collector
	}
}

// NewValidator creates a Validator over the given record set.
//
// Parameters:
//   - mgr: Record manager owning the test data
//   - opts: Optional configuration options
//
// Returns:
//   - *Validator: The validator
func NewValidator(mgr *RecordManager, opts ...ValidatorOption) *Validator {
	v := &Validator{
		mgr:     mgr,
		kind:    types.IndexNotUnique,
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate runs one write-and-verify cycle against the validation record.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: types.ErrWorkloadFailed if the attached workload has failed,
//     or the first error of the validation cycle
func (v *Validator) Validate(ctx context.Context) error {
	if err := v.validate(ctx); err != nil {
		v.metrics.IncValidationFailure()
		return err
	}
	v.metrics.IncValidationPass()
	return nil
}

func (v *Validator) validate(ctx context.Context) error {
	if v.gen != nil && v.gen.Failed() {
		return types.ErrWorkloadFailed
	}

	id := v.mgr.ValidationRecordID()
	rec, err := v.mgr.SelectOrCreate(ctx, id)
	if err != nil {
		return fmt.Errorf("stress: validation read failed: %w", err)
	}

	if v.readOnly {
		v.logger.Info("read-only validation passed", "record", id)
		return nil
	}

	bump(&rec, v.kind)
	if err := v.mgr.UpdateProp(ctx, rec, v.kind); err != nil {
		return fmt.Errorf("stress: validation write failed: %w", err)
	}

	got, err := v.mgr.Select(ctx, id)
	if err != nil {
		return fmt.Errorf("stress: validation re-read failed: %w", err)
	}
	if got.Value(v.kind) != rec.Value(v.kind) {
		return fmt.Errorf("stress: validation lost update on record %d: wrote %d, read back %d",
			id, rec.Value(v.kind), got.Value(v.kind))
	}

	v.logger.Info("validation passed", "record", id, "value", got.Value(v.kind))
	return nil
}
