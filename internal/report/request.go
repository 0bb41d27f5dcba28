package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Request selects what a build computes: every metric at every window for
// every location, restricted to [Start, End].
type Request struct {
	Locations []domain.Location `json:"locations" validate:"min=1"`
	Metrics   []string          `json:"metrics" validate:"min=1,dive,metric"`
	Windows   []int             `json:"windows" validate:"min=1,dive,gte=0,lte=365"`
	Start     time.Time         `json:"start,omitzero"`
	End       time.Time         `json:"end,omitzero"`
}

var validate = mustNewValidator()

func mustNewValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("metric", func(fl validator.FieldLevel) bool {
		_, err := LookupMetric(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// NewRequest parses location texts and validates the request. Duplicate
// locations are dropped, keeping the first occurrence.
func NewRequest(locations, metricNames []string, windows []int, start, end time.Time) (Request, error) {
	req := Request{
		Metrics: metricNames,
		Windows: windows,
		Start:   start,
		End:     end,
	}
	seen := make(map[domain.Location]bool, len(locations))
	for _, text := range locations {
		loc, err := domain.ParseLocation(text)
		if err != nil {
			return Request{}, fmt.Errorf("parse location %q: %w", text, err)
		}
		if seen[loc] {
			continue
		}
		seen[loc] = true
		req.Locations = append(req.Locations, loc)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request against the metric catalogue and bounds.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "metric" {
					_, lookupErr := LookupMetric(fmt.Sprint(fe.Value()))
					return fmt.Errorf("invalid request: %w", lookupErr)
				}
			}
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return errors.New("invalid request: end date is before start date")
	}
	return nil
}
