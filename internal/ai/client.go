package ai

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/providers/llm"
)

const maxAttempts = 5

// Client wraps one text-generation call with retry/backoff and response
// repair. Every service-side model call goes through Invoke.
type Client struct {
	provider llm.Provider
	log      *logrus.Logger

	// sleep is swapped out in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func NewClient(provider llm.Provider, log *logrus.Logger) *Client {
	return &Client{
		provider: provider,
		log:      log,
		sleep:    sleepCtx,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

// Invoke sends the prompt, extracts the JSON object from the reply, and
// decodes it into out. Transient upstream failures are retried up to
// maxAttempts with 2^attempt seconds + jitter between attempts; any other
// 4xx fails immediately. Exhausting retries yields ErrModelUnavailable;
// unparsable output yields a MalformedError whose raw text is logged and
// never surfaced to callers' clients.
func (c *Client) Invoke(ctx context.Context, prompt string, out any) error {
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return err
	}

	obj, err := extractJSON(raw)
	if err != nil {
		if c.log != nil {
			c.log.WithField("raw", raw).WithError(err).
				Warn("model response unparsable after repair")
		}
		return err
	}

	if err := json.Unmarshal(obj, out); err != nil {
		if c.log != nil {
			c.log.WithField("raw", raw).WithError(err).
				Warn("model response does not match expected shape")
		}
		return &MalformedError{Raw: raw, Err: err}
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := c.provider.Generate(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !transient(err) {
			return "", err
		}
		if c.log != nil {
			c.log.WithError(err).WithField("attempt", attempt).
				Warn("model call failed, will retry")
		}
		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(1<<uint(attempt))*time.Second + c.jitter()
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", &unavailableError{last: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type unavailableError struct{ last error }

func (e *unavailableError) Error() string {
	if e.last == nil {
		return ErrModelUnavailable.Error()
	}
	return ErrModelUnavailable.Error() + ": " + e.last.Error()
}

func (e *unavailableError) Is(target error) bool { return target == ErrModelUnavailable }

func (e *unavailableError) Unwrap() error { return e.last }
