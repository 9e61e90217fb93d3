/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// User queries
	queryListUsers = `
		SELECT id, email, password_hash, full_name, role, kyc_status, created_at, updated_at
		FROM users
		ORDER BY created_at`

	queryInsertUser = `
		INSERT INTO users (id, email, password_hash, full_name, role, kyc_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, email, password_hash, full_name, role, kyc_status, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT id, email, password_hash, full_name, role, kyc_status, created_at, updated_at
		FROM users
		WHERE email = ?`

	queryUpdateUser = `
		UPDATE users
		SET full_name = COALESCE(?, full_name),
		    password_hash = COALESCE(?, password_hash),
		    role = COALESCE(?, role),
		    updated_at = ?
		WHERE id = ?`

	queryUpdateUserKycStatus = `
		UPDATE users SET kyc_status = ?, updated_at = ? WHERE id = ?`

	// Balance queries
	queryGetUserBalances = `
		SELECT asset, balance
		FROM account_balances
		WHERE user_id = ?
		ORDER BY asset`

	queryGetAllBalances = `
		SELECT user_id, asset, balance
		FROM account_balances
		ORDER BY user_id, asset`

	queryUserExists = `
		SELECT COUNT(*) FROM users WHERE id = ?`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, user_id, asset, balance, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_movement_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND asset = ? AND version = ?`

	queryInsertMovement = `
		INSERT INTO balance_movements (id, user_id, asset, kind, amount, balance_before, balance_after, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListMovements = `
		SELECT id, user_id, asset, kind, amount, balance_before, balance_after, reference, created_at
		FROM balance_movements
		WHERE user_id = ? AND (? = '' OR asset = ?)
		ORDER BY seq DESC
		LIMIT ? OFFSET ?`

	queryMovementAmounts = `
		SELECT amount FROM balance_movements WHERE user_id = ? AND asset = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, movement_id, account_type, account_id, asset, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// Deposit queries
	queryInsertDeposit = `
		INSERT INTO deposits (id, user_id, user_name, user_email, amount, currency, tx_hash, proof_image,
		                      status, admin_note, created_at, approved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListDeposits = `
		SELECT id, user_id, user_name, user_email, amount, currency, tx_hash, proof_image,
		       status, admin_note, created_at, approved_at
		FROM deposits
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetDeposit = `
		SELECT id, user_id, user_name, user_email, amount, currency, tx_hash, proof_image,
		       status, admin_note, created_at, approved_at
		FROM deposits
		WHERE id = ?`

	querySettleDeposit = `
		UPDATE deposits SET status = ?, admin_note = ?, approved_at = ?
		WHERE id = ? AND status = 'pending'`

	// Withdrawal queries
	queryInsertWithdrawal = `
		INSERT INTO withdrawals (id, user_id, user_name, user_email, amount, currency, wallet_address,
		                         status, admin_note, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListWithdrawals = `
		SELECT id, user_id, user_name, user_email, amount, currency, wallet_address,
		       status, admin_note, created_at, processed_at
		FROM withdrawals
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetWithdrawal = `
		SELECT id, user_id, user_name, user_email, amount, currency, wallet_address,
		       status, admin_note, created_at, processed_at
		FROM withdrawals
		WHERE id = ?`

	queryPendingWithdrawalAmounts = `
		SELECT amount FROM withdrawals
		WHERE user_id = ? AND currency = ? AND status = 'pending'`

	querySettleWithdrawal = `
		UPDATE withdrawals SET status = ?, admin_note = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	// Trade queries
	queryInsertTrade = `
		INSERT INTO trades (id, user_id, user_name, user_email, type, market, pair, amount, price, total, fee,
		                    status, admin_note, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListTrades = `
		SELECT id, user_id, user_name, user_email, type, market, pair, amount, price, total, fee,
		       status, admin_note, created_at, executed_at
		FROM trades
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetTrade = `
		SELECT id, user_id, user_name, user_email, type, market, pair, amount, price, total, fee,
		       status, admin_note, created_at, executed_at
		FROM trades
		WHERE id = ?`

	querySettleTrade = `
		UPDATE trades SET status = ?, admin_note = ?, executed_at = ?
		WHERE id = ? AND status = 'pending'`

	// KYC queries
	queryInsertKyc = `
		INSERT INTO kyc_requests (id, user_id, user_name, user_email, document_type, document_number,
		                          front_image, back_image, status, admin_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListKyc = `
		SELECT id, user_id, user_name, user_email, document_type, document_number,
		       front_image, back_image, status, admin_note, created_at, updated_at
		FROM kyc_requests
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetKyc = `
		SELECT id, user_id, user_name, user_email, document_type, document_number,
		       front_image, back_image, status, admin_note, created_at, updated_at
		FROM kyc_requests
		WHERE id = ?`

	queryHasPendingKyc = `
		SELECT COUNT(*) FROM kyc_requests WHERE user_id = ? AND status = 'pending'`

	querySettleKyc = `
		UPDATE kyc_requests SET status = ?, admin_note = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	// Chat queries
	queryInsertMessage = `
		INSERT INTO chat_messages (id, user_id, sender, text, timestamp, read, user_name, user_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryListMessages = `
		SELECT id, user_id, sender, text, timestamp, read, user_name, user_email
		FROM chat_messages
		WHERE user_id = ?
		ORDER BY seq`

	queryListAllMessages = `
		SELECT m.id, m.user_id, m.sender, m.text, m.timestamp, m.read,
		       COALESCE(u.full_name, m.user_name), COALESCE(u.email, m.user_email)
		FROM chat_messages m
		LEFT JOIN users u ON u.id = m.user_id
		ORDER BY m.seq`

	queryMarkRead = `
		UPDATE chat_messages SET read = 1
		WHERE user_id = ? AND sender = ? AND read = 0`

	queryCountUnread = `
		SELECT COUNT(*) FROM chat_messages
		WHERE (? = '' OR user_id = ?) AND sender = ? AND read = 0`

	// Session queries
	queryInsertSession = `
		INSERT INTO sessions (id, user_id, role, issued_at, expires_at) VALUES (?, ?, ?, ?, ?)`

	queryGetSession = `
		SELECT id, user_id, role, issued_at, expires_at FROM sessions WHERE id = ?`

	queryDeleteSession = `
		DELETE FROM sessions WHERE id = ?`
)
