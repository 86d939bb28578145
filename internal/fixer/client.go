package fixer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modforge/cdengine/internal/auth"
	"github.com/modforge/cdengine/internal/httpretry"
)

// fixRequest is the backend payload.
type fixRequest struct {
	SourceText   string `json:"sourceText"`
	ErrorMessage string `json:"errorMessage"`
	Language     string `json:"language"`
}

// fixResponse is the backend reply. Older backends answer with "code".
type fixResponse struct {
	FixedCode   string `json:"fixedCode"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// Client is the HTTP [Invoker].
type Client struct {
	http *httpretry.Client
	url  string
	auth auth.Provider
}

// NewClient returns a Client posting to url (the absolute fix endpoint).
func NewClient(hc *httpretry.Client, url string, a auth.Provider) *Client {
	return &Client{http: hc, url: url, auth: a}
}

// Fix implements [Invoker].
func (c *Client) Fix(ctx context.Context, req Request) Result {
	if req.SourceText == "" {
		return FailedResult(ErrEmptySource)
	}
	if !c.auth.IsAuthenticated() {
		return FailedResult(ErrNoToken)
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(fixRequest{
		SourceText:   req.SourceText,
		ErrorMessage: req.FormattedProblems,
		Language:     req.Language,
	})
	if err != nil {
		return FailedResult(fmt.Errorf("marshal fix request: %w", err))
	}

	resp, err := c.http.Execute(ctx, http.MethodPost, c.url, body, c.auth.AccessToken())
	if err != nil {
		return FailedResult(err)
	}

	var fr fixResponse
	if err := json.Unmarshal(resp.Body, &fr); err != nil {
		return NoChangeResult()
	}
	fixed := fr.FixedCode
	if fixed == "" {
		fixed = fr.Code
	}
	return Classify(req.SourceText, fixed, fr.Explanation)
}

var _ Invoker = (*Client)(nil)
