package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"result = 1", "result = 1"},
		{"```python\nresult = 1\n```", "result = 1"},
		{"```\nresult = 1\n```", "result = 1"},
		{"Here you go:\n```python\nresult = 1\n```\nEnjoy!", "result = 1"},
		{"  ```python\nimport json\nresult = 2\n```  ", "import json\nresult = 2"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StripFences(c.in))
	}
}

func TestClassifyTerminal(t *testing.T) {
	err := classify(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized})
	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Transient)

	err = classify(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Code: "insufficient_quota"})
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Transient, "quota exhaustion must not be retried")
	assert.Contains(t, gerr.Reason, "quota")
}

func TestClassifyTransient(t *testing.T) {
	var gerr *domain.GenerationError

	err := classify(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests})
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Transient)

	err = classify(&openai.APIError{HTTPStatusCode: http.StatusBadGateway})
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Transient)

	err = classify(context.DeadlineExceeded)
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Transient)

	err = classify(errors.New("connection refused"))
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Transient)
}

func TestClassifyBadRequestIsTerminal(t *testing.T) {
	err := classify(&openai.APIError{HTTPStatusCode: http.StatusBadRequest})
	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Transient)
}
