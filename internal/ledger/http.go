package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient submits transfers to a ledger gateway that signs and relays them
// and answers only after the ledger has settled the receipt.
//
//	POST {base}/native/transfer            {"transfer_id","receiver_id","amount"}
//	POST {base}/contracts/{id}/ft_transfer {"transfer_id","receiver_id","amount","memo","attached_deposit","gas"}
//	GET  {base}/transfers/{transfer_id}    {"status":"succeeded"|"failed","reason"}
//
// The gateway executes a transfer id at most once. 2xx means the transfer
// succeeded and 4xx that the ledger rejected it. A 5xx or a transport error
// says nothing about the outcome.
type HTTPClient struct {
	base   string
	signer string
	hc     *http.Client
}

func NewHTTPClient(baseURL, signerID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(baseURL, "/"),
		signer: signerID,
		hc:     &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) TransferNative(ctx context.Context, t NativeTransfer) error {
	return c.post(ctx, t.TransferID, "/native/transfer", map[string]any{
		"transfer_id": t.TransferID,
		"receiver_id": t.ReceiverID,
		"amount":      t.Amount,
	})
}

func (c *HTTPClient) FtTransfer(ctx context.Context, t FtTransfer) error {
	return c.post(ctx, t.TransferID, "/contracts/"+t.ContractID+"/ft_transfer", map[string]any{
		"transfer_id":      t.TransferID,
		"receiver_id":      t.ReceiverID,
		"amount":           t.Amount,
		"memo":             t.Memo,
		"attached_deposit": t.AttachedDeposit,
		"gas":              t.Gas,
	})
}

func (c *HTTPClient) Lookup(ctx context.Context, transferID string) (Receipt, error) {
	path := "/transfers/" + url.PathEscape(transferID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("X-Signer-Id", c.signer)

	resp, err := c.hc.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: ledger %s: %v", ErrOutcomeUnknown, path, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Receipt{Status: ReceiptNotFound}, nil
	case resp.StatusCode/100 != 2:
		return Receipt{}, fmt.Errorf("%w: ledger %s status=%d", ErrOutcomeUnknown, path, resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return Receipt{}, fmt.Errorf("%w: ledger %s: decode receipt: %v", ErrOutcomeUnknown, path, err)
	}
	switch body.Status {
	case "succeeded":
		return Receipt{Status: ReceiptSucceeded}, nil
	case "failed":
		return Receipt{Status: ReceiptRejected, Reason: body.Reason}, nil
	default:
		return Receipt{}, fmt.Errorf("%w: ledger %s: receipt status %q", ErrOutcomeUnknown, path, body.Status)
	}
}

func (c *HTTPClient) post(ctx context.Context, transferID, path string, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signer-Id", c.signer)
	req.Header.Set("Idempotency-Key", transferID)

	resp, err := c.hc.Do(req)
	if err != nil {
		// the request may have reached the ledger before the connection broke
		return fmt.Errorf("%w: ledger %s: %v", ErrOutcomeUnknown, path, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode/100 == 4:
		return fmt.Errorf("%w: %s status=%d body=%s", ErrRejected, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	default:
		return fmt.Errorf("%w: %s status=%d body=%s", ErrOutcomeUnknown, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

var _ Client = (*HTTPClient)(nil)
var _ Client = (*Memory)(nil)
