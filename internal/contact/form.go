// Package contact validates and delivers contact form submissions.
package contact

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const maxFieldRunes = 5000

// ErrNotConfigured is returned when no delivery collaborator is set.
var ErrNotConfigured = errors.New("contact: no submitter configured")

// Status is the form's delivery state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// Input is the raw form.
type Input struct {
	Name    string
	Email   string
	Message string
}

// Submission is a validated message ready for delivery.
type Submission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ValidationError lists the invalid fields with a message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("contact: invalid fields [%s]", strings.Join(names, ", "))
}

// Submitter delivers a submission to an external collaborator.
type Submitter interface {
	Submit(ctx context.Context, s Submission) error
}

// Validate trims the input and checks required fields and the email address.
func Validate(in Input) (Submission, error) {
	sub := Submission{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Message: strings.TrimSpace(in.Message),
	}
	fields := map[string]string{}
	if sub.Name == "" {
		fields["name"] = "Please tell us your name."
	}
	if sub.Message == "" {
		fields["message"] = "Please write a message."
	} else if len([]rune(sub.Message)) > maxFieldRunes {
		fields["message"] = "Message is too long."
	}
	if sub.Email == "" {
		fields["email"] = "Please enter your email address."
	} else if addr, err := mail.ParseAddress(sub.Email); err != nil {
		fields["email"] = "Please enter a valid email address."
	} else {
		sub.Email = addr.Address
	}
	if len(fields) > 0 {
		return Submission{}, &ValidationError{Fields: fields}
	}
	return sub, nil
}

// Form tracks delivery status: idle, then sending, then sent or error. It can be resubmitted
// from sent or error; failures are never retried automatically.
type Form struct {
	submitter Submitter
	logger    *zap.Logger
	now       func() time.Time
	idGen     func() string

	mu     sync.Mutex
	status Status
	err    error
}

// Option customises a Form.
type Option func(*Form)

// WithLogger sets the delivery logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Form) {
		if now != nil {
			f.now = now
		}
	}
}

// NewForm returns an idle form delivering through submitter.
func NewForm(submitter Submitter, opts ...Option) *Form {
	f := &Form{
		submitter: submitter,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     func() string { return ulid.Make().String() },
		status:    StatusIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Status returns the current state and the last delivery error.
func (f *Form) Status() (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

// Submit validates in and delivers it. A validation failure leaves the status untouched and
// returns a *ValidationError. A submission while sending is rejected.
func (f *Form) Submit(ctx context.Context, in Input) (Submission, error) {
	sub, err := Validate(in)
	if err != nil {
		return Submission{}, err
	}

	f.mu.Lock()
	if f.status == StatusSending {
		f.mu.Unlock()
		return Submission{}, errors.New("contact: submission already in progress")
	}
	f.status = StatusSending
	f.err = nil
	f.mu.Unlock()

	sub.ID = f.idGen()
	sub.SubmittedAt = f.now()

	var deliverErr error
	if f.submitter == nil {
		deliverErr = ErrNotConfigured
	} else {
		deliverErr = f.submitter.Submit(ctx, sub)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if deliverErr != nil {
		f.status = StatusError
		f.err = deliverErr
		f.logger.Warn("contact: delivery failed", zap.String("submission_id", sub.ID), zap.Error(deliverErr))
		return sub, deliverErr
	}
	f.status = StatusSent
	f.logger.Info("contact: submission delivered", zap.String("submission_id", sub.ID))
	return sub, nil
}
