package database

// transferColumns is the canonical column list; every SELECT uses it so
// scanTransfer can stay in one place.
const transferColumns = `
		id, sender_id, receiver_id, sender_national_id, receiver_national_id,
		amount, currency, amount_in_try, exchange_rate, transaction_fee,
		transaction_code, status, risk_level, idempotency_key, description,
		approval_required_until, version, created_at, completed_at, cancelled_at,
		cancellation_reason`

const (
	queryInsertTransfer = `
		INSERT INTO transfers (
			id, sender_id, receiver_id, sender_national_id, receiver_national_id,
			amount, currency, amount_in_try, exchange_rate, transaction_fee,
			transaction_code, status, risk_level, idempotency_key, description,
			approval_required_until, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransferByID = `
		SELECT` + transferColumns + `
		FROM transfers
		WHERE id = ?`

	queryGetTransferByCode = `
		SELECT` + transferColumns + `
		FROM transfers
		WHERE transaction_code = ?`

	queryGetTransferByIdempotencyKey = `
		SELECT` + transferColumns + `
		FROM transfers
		WHERE idempotency_key = ?`

	queryMarkTransferCompleted = `
		UPDATE transfers
		SET status = 'completed', completed_at = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryMarkTransferCancelled = `
		UPDATE transfers
		SET status = 'cancelled', cancelled_at = ?, cancellation_reason = ?, version = version + 1
		WHERE id = ? AND version = ?`

	// Daily totals count Pending and Completed rows only; Cancelled and
	// Failed never consume limit. Amounts are summed in Go to keep decimal
	// precision out of SQLite's float arithmetic.
	queryListDailyAmounts = `
		SELECT amount_in_try
		FROM transfers
		WHERE sender_id = ? AND status IN ('pending', 'completed')
		  AND created_at >= ? AND created_at < ?`

	queryListTransfersByCustomer = `
		SELECT` + transferColumns + `
		FROM transfers
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	queryListPendingTransfersByCustomer = `
		SELECT` + transferColumns + `
		FROM transfers
		WHERE (sender_id = ? OR receiver_id = ?) AND status = 'pending'
		ORDER BY created_at ASC`

	queryTransferCodeExists = `
		SELECT 1 FROM transfers WHERE transaction_code = ? LIMIT 1`
)
