package pages

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/export"
	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

var (
	ErrInvalidForm = errors.New("invalid create form")
	ErrSubmitting  = errors.New("create already in flight")
)

// Field messages of the create form.
const (
	MsgLocationRequired = "Location is required."
	MsgStartRequired    = "Start date is required."
	MsgEndRequired      = "End date is required."
	MsgEndBeforeStart   = "End date must be on or after start date."
	MsgBadDate          = "Use the YYYY-MM-DD format."
)

// CreateForm holds the create-query inputs.
type CreateForm struct {
	Location  string `form:"location" validate:"required"`
	StartDate string `form:"start_date" validate:"required"`
	EndDate   string `form:"end_date" validate:"required"`
}

type dateRange struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

// FormState is what the create form renders.
type FormState struct {
	Values      CreateForm
	FieldErrors map[string]string
	Error       string
	Submitting  bool
}

// Creator is the part of the API client the create form uses.
type Creator interface {
	CreateQuery(ctx context.Context, body weather.QueryCreate) (weather.QueryRecord, error)
}

// History hosts the create form next to the history table and export
// control.
type History struct {
	creator Creator
	Table   *history.Table
	Export  *export.Control

	// Dispatch runs the post-create table reload. Nil runs it inline on
	// the create context.
	Dispatch func(reload func(context.Context) error)

	mu   sync.Mutex
	form FormState
}

// NewHistory wires a History page.
func NewHistory(creator Creator, table *history.Table, exp *export.Control) *History {
	return &History{creator: creator, Table: table, Export: exp}
}

// Form returns the current form state.
func (h *History) Form() FormState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.form
}

// ValidateForm checks required fields and date order. It returns nil
// when form can be submitted.
func ValidateForm(form CreateForm) map[string]string {
	form.Location = strings.TrimSpace(form.Location)
	errs := map[string]string{}

	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Field() {
				case "Location":
					errs["location"] = MsgLocationRequired
				case "StartDate":
					errs["start_date"] = MsgStartRequired
				case "EndDate":
					errs["end_date"] = MsgEndRequired
				}
			}
		}
	}

	var r dateRange
	var err error
	if form.StartDate != "" {
		if r.From, err = weather.ParseDate(form.StartDate); err != nil {
			errs["start_date"] = MsgBadDate
		}
	}
	if form.EndDate != "" {
		if r.To, err = weather.ParseDate(form.EndDate); err != nil {
			errs["end_date"] = MsgBadDate
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() {
		if err := validate.Struct(r); err != nil {
			errs["end_date"] = MsgEndBeforeStart
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Create validates and submits the form. On success the form is cleared
// and the table reloads from the first page.
func (h *History) Create(ctx context.Context, form CreateForm) (weather.QueryRecord, error) {
	h.mu.Lock()
	if h.form.Submitting {
		h.mu.Unlock()
		return weather.QueryRecord{}, ErrSubmitting
	}
	h.form = FormState{Values: form}
	if errs := ValidateForm(form); errs != nil {
		h.form.FieldErrors = errs
		h.mu.Unlock()
		return weather.QueryRecord{}, ErrInvalidForm
	}
	h.form.Submitting = true
	h.mu.Unlock()

	rec, err := h.creator.CreateQuery(ctx, weather.QueryCreate{
		Location:  strings.TrimSpace(form.Location),
		StartDate: form.StartDate,
		EndDate:   form.EndDate,
	})

	h.mu.Lock()
	if err != nil {
		h.form.Submitting = false
		h.form.Error = apiclient.Message(err)
		h.mu.Unlock()
		return weather.QueryRecord{}, err
	}
	h.form = FormState{}
	h.mu.Unlock()

	log.Printf("INFO: created query %d for %q", rec.ID, rec.Location)
	if h.Table != nil {
		reload := h.Table.ReloadHook()
		if h.Dispatch != nil {
			h.Dispatch(reload)
		} else if err := reload(ctx); err != nil {
			log.Printf("ERROR: reload after create: %v", err)
		}
	}
	return rec, nil
}
