package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"staybook/internal/app/policies"
)

// ReceiptArchive writes receipts as JSON objects under receipts/<booking>/<kind>.json.
type ReceiptArchive struct {
	Uploader Uploader
}

func (a ReceiptArchive) Put(ctx context.Context, r policies.Receipt) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = a.Uploader.Upload(ctx, ReceiptKey(r), bytes.NewReader(body), int64(len(body)), "application/json")
	return err
}

func ReceiptKey(r policies.Receipt) string {
	return fmt.Sprintf("receipts/%s/%s.json", r.BookingID, r.Kind)
}

var _ policies.ReceiptStore = ReceiptArchive{}
