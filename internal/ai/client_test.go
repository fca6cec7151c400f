package ai

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type scriptedProvider struct {
	calls   int
	prompts []string
	script  []func() (string, error)
}

func (p *scriptedProvider) Generate(_ context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	i := p.calls
	p.calls++
	if i >= len(p.script) {
		return "", errors.New("no reply scripted")
	}
	return p.script[i]()
}

func (p *scriptedProvider) Close() error { return nil }

func reply(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func testClient(p *scriptedProvider) (*Client, *[]time.Duration) {
	l := logrus.New()
	l.SetOutput(io.Discard)

	c := NewClient(p, l)
	delays := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	c.jitter = func() time.Duration { return 0 }
	return c, delays
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	rateLimited := &HTTPError{StatusCode: 429, Body: "slow down"}
	p := &scriptedProvider{script: []func() (string, error){
		fail(rateLimited),
		fail(rateLimited),
		reply(`{"value": "ok"}`),
	}}
	c, delays := testClient(p)

	var out struct {
		Value string `json:"value"`
	}
	if err := c.Invoke(context.Background(), "prompt", &out); err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("decoded value = %q, want %q", out.Value, "ok")
	}
	if p.calls != 3 {
		t.Fatalf("provider calls = %d, want 3", p.calls)
	}
	if len(*delays) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(*delays))
	}
	for i := 1; i < len(*delays); i++ {
		if (*delays)[i] < (*delays)[i-1] {
			t.Fatalf("backoff not non-decreasing: %v", *delays)
		}
	}
	if (*delays)[0] != 2*time.Second || (*delays)[1] != 4*time.Second {
		t.Fatalf("backoff delays = %v, want [2s 4s]", *delays)
	}
}

func TestInvokeNonTransientFailsImmediately(t *testing.T) {
	badReq := &HTTPError{StatusCode: 400, Body: "bad request"}
	p := &scriptedProvider{script: []func() (string, error){fail(badReq)}}
	c, delays := testClient(p)

	var out map[string]any
	err := c.Invoke(context.Background(), "prompt", &out)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("sleeps = %d, want 0", len(*delays))
	}
	if errors.Is(err, ErrModelUnavailable) {
		t.Fatal("4xx should not map to ErrModelUnavailable")
	}
}

func TestInvokeExhaustionYieldsUnavailable(t *testing.T) {
	down := &HTTPError{StatusCode: 503, Body: "service unavailable"}
	p := &scriptedProvider{script: []func() (string, error){
		fail(down), fail(down), fail(down), fail(down), fail(down),
	}}
	c, delays := testClient(p)

	var out map[string]any
	err := c.Invoke(context.Background(), "prompt", &out)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("error = %v, want ErrModelUnavailable", err)
	}
	if p.calls != maxAttempts {
		t.Fatalf("provider calls = %d, want %d", p.calls, maxAttempts)
	}
	if len(*delays) != maxAttempts-1 {
		t.Fatalf("sleeps = %d, want %d", len(*delays), maxAttempts-1)
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != 503 {
		t.Fatalf("last upstream error not preserved: %v", err)
	}
}

func TestInvokeContextCanceledDuringBackoff(t *testing.T) {
	down := &HTTPError{StatusCode: 500, Body: "boom"}
	p := &scriptedProvider{script: []func() (string, error){
		fail(down), reply(`{"value": "never"}`),
	}}
	c, _ := testClient(p)
	c.sleep = func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	}

	var out map[string]any
	err := c.Invoke(context.Background(), "prompt", &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls)
	}
}

func TestInvokeRepairsSloppyOutput(t *testing.T) {
	p := &scriptedProvider{script: []func() (string, error){
		reply("Sure!\n```json\n{value: \"ok\",}\n```"),
	}}
	c, _ := testClient(p)

	var out struct {
		Value string `json:"value"`
	}
	if err := c.Invoke(context.Background(), "prompt", &out); err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("decoded value = %q, want %q", out.Value, "ok")
	}
}

func TestInvokeMalformedOutput(t *testing.T) {
	p := &scriptedProvider{script: []func() (string, error){
		reply("I am unable to produce JSON today."),
	}}
	c, _ := testClient(p)

	var out map[string]any
	err := c.Invoke(context.Background(), "prompt", &out)
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("error = %T, want *MalformedError", err)
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1: malformed output is not retried", p.calls)
	}
}

func TestInvokeShapeMismatch(t *testing.T) {
	p := &scriptedProvider{script: []func() (string, error){
		reply(`{"value": ["not", "a", "string"]}`),
	}}
	c, _ := testClient(p)

	var out struct {
		Value string `json:"value"`
	}
	err := c.Invoke(context.Background(), "prompt", &out)
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("error = %T, want *MalformedError", err)
	}
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "429", err: &HTTPError{StatusCode: 429}, want: true},
		{name: "500", err: &HTTPError{StatusCode: 500}, want: true},
		{name: "503", err: &HTTPError{StatusCode: 503}, want: true},
		{name: "400", err: &HTTPError{StatusCode: 400}, want: false},
		{name: "404", err: &HTTPError{StatusCode: 404}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "reset by peer", err: errors.New("read: connection reset by peer"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := transient(tt.err); got != tt.want {
				t.Fatalf("transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
