package s3_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/policies"
	"staybook/internal/infra/storage/s3"
)

type uploaderMock struct {
	mock.Mock
	body []byte
}

func (m *uploaderMock) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	m.body, _ = io.ReadAll(reader)
	args := m.Called(ctx, key, size, contentType)
	return args.String(0), args.Error(1)
}

func TestReceiptArchivePut(t *testing.T) {
	up := new(uploaderMock)
	archive := s3.ReceiptArchive{Uploader: up}
	receipt := policies.Receipt{
		BookingID: "bk-1",
		Kind:      "payment",
		GuestID:   "guest-1",
		HostID:    "host-1",
		IntentID:  "pi_1",
		Amount:    2472,
		Currency:  "THB",
		IssuedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	up.On("Upload", mock.Anything, "receipts/bk-1/payment.json", mock.AnythingOfType("int64"), "application/json").
		Return("s3://bucket/receipts/bk-1/payment.json", nil).Once()

	require.NoError(t, archive.Put(context.Background(), receipt))
	up.AssertExpectations(t)

	var stored policies.Receipt
	require.NoError(t, json.Unmarshal(up.body, &stored))
	assert.Equal(t, receipt, stored)
}
