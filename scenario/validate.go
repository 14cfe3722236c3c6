package scenario

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCatalog is returned by loaders when a catalog fails validation.
var ErrInvalidCatalog = errors.New("scenario: invalid catalog")

// ValidationError reports one authoring problem in a catalog.
type ValidationError struct {
	Index    int    // position of the offending scenario
	Label    string // scenario name, or sensor ID when unnamed
	SensorID string
	Field    string // YAML path of the offending field, e.g. "distribution.stdDev"
	Reason   string

	// ConflictIndex and ConflictLabel name the earlier entry for duplicate sensor IDs.
	// ConflictIndex is -1 for every other problem.
	ConflictIndex int
	ConflictLabel string
}

func (e *ValidationError) Error() string {
	if e.ConflictIndex >= 0 {
		return fmt.Sprintf("scenario #%d %q: %s: %s (conflicts with scenario #%d %q)",
			e.Index, e.Label, e.Field, e.Reason, e.ConflictIndex, e.ConflictLabel)
	}

	return fmt.Sprintf("scenario #%d %q: %s: %s", e.Index, e.Label, e.Field, e.Reason)
}

// IsDuplicate reports whether the error is a sensor ID collision.
func (e *ValidationError) IsDuplicate() bool {
	return e.ConflictIndex >= 0
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// Validate checks every scenario and returns all problems found.
// An empty result means the catalog may be used to drive ticks.
func (c *Catalog) Validate() []error {
	var errs []error
	seen := make(map[string]int, len(c.scenarios))

	for i, s := range c.scenarios {
		errs = append(errs, validateFields(i, s)...)
		errs = append(errs, validateScale(i, s)...)

		if s.SensorID == "" {
			continue
		}
		if first, dup := seen[s.SensorID]; dup {
			errs = append(errs, &ValidationError{
				Index:         i,
				Label:         s.Label(),
				SensorID:      s.SensorID,
				Field:         "sensorId",
				Reason:        fmt.Sprintf("duplicate sensor ID %q", s.SensorID),
				ConflictIndex: first,
				ConflictLabel: c.scenarios[first].Label(),
			})

			continue
		}
		seen[s.SensorID] = i
	}

	return errs
}

func validateFields(i int, s Scenario) []error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{newValidationError(i, s, "", err.Error())}
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, newValidationError(i, s, fieldPath(fe), describe(fe)))
	}

	return errs
}

func validateScale(i int, s Scenario) []error {
	d := s.Distribution
	var errs []error

	switch d.Kind {
	case KindGaussian:
		if !isFinite(d.Mean) {
			errs = append(errs, newValidationError(i, s, "distribution.mean", "must be a finite number"))
		}
		if !(d.StdDev > 0) || math.IsInf(d.StdDev, 0) {
			errs = append(errs, newValidationError(i, s, "distribution.stdDev",
				fmt.Sprintf("must be positive, got %v", d.StdDev)))
		}
	case KindUniform:
		if !isFinite(d.Min) || !isFinite(d.Max) {
			errs = append(errs, newValidationError(i, s, "distribution", "min and max must be finite numbers"))
		} else if !(d.Max > d.Min) {
			errs = append(errs, newValidationError(i, s, "distribution.max",
				fmt.Sprintf("must be greater than min (%v), got %v", d.Min, d.Max)))
		}
	}

	return errs
}

func newValidationError(i int, s Scenario, field, reason string) *ValidationError {
	return &ValidationError{
		Index:         i,
		Label:         s.Label(),
		SensorID:      s.SensorID,
		Field:         field,
		Reason:        reason,
		ConflictIndex: -1,
	}
}

// fieldPath strips the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}

	return path
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "gtefield":
		return fmt.Sprintf("must not be less than %s", strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// JoinErrors folds validation errors into a single error wrapping ErrInvalidCatalog.
func JoinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
}
