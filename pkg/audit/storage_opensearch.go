package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// DefaultIndex is the index audit events are bulk-written to.
const DefaultIndex = "audit-events"

// OpenSearchStorage bulk-indexes batches. The client is any opensearchapi
// transport, normally *opensearch.Client.
type OpenSearchStorage struct {
	client opensearchapi.Transport
	index  string
}

func NewOpenSearchStorage(client opensearchapi.Transport, index string) *OpenSearchStorage {
	if index == "" {
		index = DefaultIndex
	}
	return &OpenSearchStorage{client: client, index: index}
}

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

func (s *OpenSearchStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, ev := range events {
		var action bulkAction
		action.Index.Index = s.index
		action.Index.ID = ev.ID.String()
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode audit event %s: %w", ev.ID, err)
		}
	}

	res, err := opensearchapi.BulkRequest{Index: s.index, Body: &body}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("bulk index audit events: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("bulk index audit events: status %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}

	var out bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !out.Errors {
		return nil
	}

	failed := 0
	var first string
	for _, item := range out.Items {
		for _, r := range item {
			if r.Error != nil {
				failed++
				if first == "" {
					first = r.Error.Type + ": " + r.Error.Reason
				}
			}
		}
	}
	return fmt.Errorf("bulk index audit events: %d of %d failed: %s", failed, len(events), first)
}
