package contact

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxMessageLength = 4000

// Request is a message left through the contact form.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ValidationError lists the form fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range []string{"name", "email", "message"} {
		if msg, ok := e.Fields[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return "invalid contact request: " + strings.Join(parts, "; ")
}

// Normalize trims the fields and checks them.
func (r Request) Normalize() (Request, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)

	fields := make(map[string]string)
	if r.Name == "" {
		fields["name"] = "Укажите имя"
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		fields["email"] = "Укажите корректный email"
	}
	if r.Message == "" {
		fields["message"] = "Напишите сообщение"
	} else if len([]rune(r.Message)) > maxMessageLength {
		fields["message"] = "Сообщение слишком длинное"
	}
	if len(fields) > 0 {
		return r, &ValidationError{Fields: fields}
	}
	return r, nil
}

// Service records contact requests and forwards them to the form endpoint.
type Service struct {
	db         *sql.DB
	endpoint   string
	httpClient *http.Client
	maxRetries uint64
	retryWait  time.Duration
	logger     *zap.Logger
}

// NewService returns a Service. With an empty endpoint requests are only stored and logged.
func NewService(db *sql.DB, endpoint string, timeout time.Duration, maxRetries uint64, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryWait:  200 * time.Millisecond,
		logger:     logger,
	}
}

// Submit validates the request, stores it and delivers it to the endpoint.
// A stored request that could not be delivered is reported with an error but kept
// for manual follow-up.
func (s *Service) Submit(ctx context.Context, req Request) error {
	req, err := req.Normalize()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_requests (name, contact, message)
		VALUES (?, ?, ?)
	`, req.Name, req.Email, req.Message)
	if err != nil {
		return fmt.Errorf("insert contact request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read contact request id: %w", err)
	}

	if s.endpoint == "" {
		s.logger.Info("contact request stored without delivery", zap.Int64("id", id), zap.String("email", req.Email))
		return nil
	}

	if err := s.deliver(ctx, req); err != nil {
		s.logger.Error("contact request delivery failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("deliver contact request: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE contact_requests SET delivered = TRUE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark contact request delivered: %w", err)
	}
	s.logger.Info("contact request delivered", zap.Int64("id", id))
	return nil
}

func (s *Service) deliver(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryWait
	policy.MaxElapsedTime = 30 * time.Second

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("retrying contact request delivery", zap.Error(err), zap.Duration("wait", wait))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx), notify)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
