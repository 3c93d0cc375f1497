package protocol

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// ToleranceCheck is a built-in protocol that records numeric readings and
// validates each against an inclusive [LowerLimit, UpperLimit] band. Readings
// come from the "readings" parameter (map of name to value); out-of-band
// readings produce error findings, or critical findings in strict mode.
type ToleranceCheck struct {
	ID         string
	LowerLimit float64
	UpperLimit float64
	Unit       string
	// Strict escalates out-of-band readings to critical, failing the run.
	Strict bool
}

func (t *ToleranceCheck) ProtocolID() string { return t.ID }

func (t *ToleranceCheck) Setup(ctx context.Context, run *Run) error {
	if t.UpperLimit < t.LowerLimit {
		return fmt.Errorf("upper limit %v below lower limit %v", t.UpperLimit, t.LowerLimit)
	}
	if _, err := t.readings(run); err != nil {
		return err
	}
	return nil
}

func (t *ToleranceCheck) Execute(ctx context.Context, run *Run) error {
	readings, err := t.readings(run)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(readings))
	for name := range readings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		run.AddMeasurement(name, readings[name], t.Unit)
	}
	return nil
}

func (t *ToleranceCheck) Analyze(ctx context.Context, run *Run) (map[string]any, error) {
	measurements := run.Measurements()
	if len(measurements) == 0 {
		return nil, fmt.Errorf("no readings acquired")
	}

	minimum, maximum := 0.0, 0.0
	sum := 0.0
	for i, m := range measurements {
		value := m.Value.(float64)
		if i == 0 || value < minimum {
			minimum = value
		}
		if i == 0 || value > maximum {
			maximum = value
		}
		sum += value
	}
	return map[string]any{
		"count": len(measurements),
		"min":   minimum,
		"max":   maximum,
		"mean":  sum / float64(len(measurements)),
	}, nil
}

func (t *ToleranceCheck) Validate(ctx context.Context, run *Run) error {
	severity := SeverityError
	if t.Strict {
		severity = SeverityCritical
	}
	inBand := 0
	for _, m := range run.Measurements() {
		value := m.Value.(float64)
		if value < t.LowerLimit || value > t.UpperLimit {
			run.AddFinding(severity, "tolerance",
				fmt.Sprintf("%s=%v outside [%v, %v]", m.Name, value, t.LowerLimit, t.UpperLimit))
			continue
		}
		inBand++
	}
	run.AddFinding(SeverityInfo, "tolerance",
		fmt.Sprintf("%d of %d readings within limits", inBand, len(run.Measurements())))
	return nil
}

func (t *ToleranceCheck) GenerateReport(ctx context.Context, run *Run) (map[string]any, error) {
	return map[string]any{
		"protocol":    t.ID,
		"lower_limit": t.LowerLimit,
		"upper_limit": t.UpperLimit,
		"readings":    len(run.Measurements()),
	}, nil
}

// readings extracts the named numeric readings from the run parameters.
func (t *ToleranceCheck) readings(run *Run) (map[string]float64, error) {
	raw, ok := run.Parameters["readings"]
	if !ok {
		return nil, fmt.Errorf("parameter %q is required", "readings")
	}

	out := make(map[string]float64)
	switch values := raw.(type) {
	case map[string]float64:
		for name, value := range values {
			out[name] = value
		}
	case map[string]any:
		for name, value := range values {
			parsed, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", name, err)
			}
			out[name] = parsed
		}
	default:
		return nil, fmt.Errorf("parameter %q must map names to numbers", "readings")
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parameter %q is empty", "readings")
	}
	return out, nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported value %T", value)
	}
}
