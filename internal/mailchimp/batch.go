package mailchimp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// BatchOperation is one sub-operation of a POST /batches request. Keeping it
// a typed value (rather than ad hoc JSON at call sites) means the set of
// fields sent is statically checked; serialization happens only here.
type BatchOperation struct {
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params"`
	Body   string            `json:"body"`
}

// MemberMergePatch builds the PATCH sub-operation that sets merge-field
// values for one member of a list. The API expects the sub-operation body as
// a JSON-encoded string, not a nested object.
func MemberMergePatch(listID, email string, values map[string]string) (BatchOperation, error) {
	body, err := json.Marshal(map[string]any{
		"merge_fields": values,
	})
	if err != nil {
		return BatchOperation{}, fmt.Errorf("mailchimp: encoding merge field values: %w", err)
	}
	return BatchOperation{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("lists/%s/members/%s", listID, email),
		Params: map[string]string{},
		Body:   string(body),
	}, nil
}

// SubmitBatch sends one multi-operation request bundling every sub-operation
// into a single HTTP call.
//
// A success return means the batch was ACCEPTED. The server applies the
// sub-operations asynchronously and this client does not inspect their
// individual outcomes, so per-member application is never guaranteed here.
func (c *Client) SubmitBatch(ctx context.Context, tok Token, ops []BatchOperation) error {
	body, err := json.Marshal(map[string]any{
		"operations": ops,
	})
	if err != nil {
		return fmt.Errorf("mailchimp: encoding batch body: %w", err)
	}
	if _, err := c.do(ctx, tok, http.MethodPost, "batches", nil, body); err != nil {
		return err
	}
	return nil
}
