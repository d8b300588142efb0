package sequence

import (
	"errors"
	"testing"
	"time"

	"warehouse-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNext(t *testing.T) {
	db := testutil.NewDB(t)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	n1, err := Next(db, IssueVoucher, at)
	require.NoError(t, err)
	assert.Equal(t, "ISS-2025/00001", n1)

	n2, err := Next(db, IssueVoucher, at)
	require.NoError(t, err)
	assert.Equal(t, "ISS-2025/00002", n2)

	p1, err := Next(db, Payment, at)
	require.NoError(t, err)
	assert.Equal(t, "PAY-2025/00001", p1)

	n3, err := Next(db, IssueVoucher, at.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "ISS-2026/00001", n3, "numbering restarts every year")

	_, err = Next(db, "invoice", at)
	assert.Error(t, err)
}

func TestNextRolledBack(t *testing.T) {
	db := testutil.NewDB(t)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := Next(tx, ReturnVoucher, at)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := Next(db, ReturnVoucher, at)
	require.NoError(t, err)
	assert.Equal(t, "RET-2025/00001", n)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "PAY-2024/00042", Format("PAY", 2024, 42))
}
