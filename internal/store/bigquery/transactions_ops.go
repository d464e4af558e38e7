package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// ListTransactionsWithClient reads every transaction, oldest insert first.
func ListTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			id,
			date,
			type,
			owner,
			stake_percent,
			amount,
			odds,
			potential_profit,
			net_profit,
			notes,
			created_at
		FROM %s
		ORDER BY created_at, id
	`, ds.table(transactionsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		tx, err := r.ToTransaction()
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// InsertTransactionWithClient writes one transaction with a DML INSERT.
// Streaming inserts are avoided because rows in the streaming buffer cannot
// be updated or deleted.
func InsertTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, tx domain.Transaction) (domain.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	row := NewTransactionRow(tx)

	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(id, date, type, owner, stake_percent, amount, odds, potential_profit, net_profit, notes, created_at)
		VALUES (
			@id, @date, @type, @owner, @stake_percent, @amount, @odds,
			CAST(@potential_profit AS NUMERIC), @net_profit, @notes,
			IFNULL(@created_at, CURRENT_TIMESTAMP())
		)
	`, ds.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "date", Value: row.Date},
		{Name: "type", Value: row.Type},
		{Name: "owner", Value: row.Owner},
		{Name: "stake_percent", Value: row.StakePercent},
		{Name: "amount", Value: row.Amount},
		{Name: "odds", Value: row.Odds},
		{Name: "potential_profit", Value: numericParam(tx.PotentialProfit)},
		{Name: "net_profit", Value: row.NetProfit},
		{Name: "notes", Value: row.Notes},
		{Name: "created_at", Value: createdAtParam(tx)},
	}

	if _, err := runDML(ctx, q); err != nil {
		return domain.Transaction{}, fmt.Errorf("InsertTransaction: %w", err)
	}
	return getTransactionWithClient(ctx, client, ds, row.ID)
}

// UpdateTransactionWithClient overwrites the mutable columns of a transaction.
func UpdateTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string, u domain.TransactionUpdate) (domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET
			date = @date,
			type = @type,
			owner = @owner,
			amount = CAST(@amount AS NUMERIC),
			odds = @odds,
			potential_profit = CAST(@potential_profit AS NUMERIC),
			net_profit = CAST(@net_profit AS NUMERIC),
			notes = @notes
		WHERE id = @id
	`, ds.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "date", Value: u.Date},
		{Name: "type", Value: string(u.Type)},
		{Name: "owner", Value: nullOwner(u.Owner)},
		{Name: "amount", Value: numericParam(&u.Amount)},
		{Name: "odds", Value: nullFloat(u.Odds)},
		{Name: "potential_profit", Value: numericParam(u.PotentialProfit)},
		{Name: "net_profit", Value: numericParam(&u.NetProfit)},
		{Name: "notes", Value: u.Notes},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	if affected == 0 {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return getTransactionWithClient(ctx, client, ds, id)
}

// DeleteTransactionWithClient removes a transaction.
func DeleteTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string) error {
	q := client.Query(fmt.Sprintf(`DELETE FROM %s WHERE id = @id`, ds.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func getTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string) (domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT id, date, type, owner, stake_percent, amount, odds,
		       potential_profit, net_profit, notes, created_at
		FROM %s
		WHERE id = @id
		LIMIT 1
	`, ds.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("getTransaction: query read: %w", err)
	}

	var r TransactionRow
	err = it.Next(&r)
	if err == iterator.Done {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("getTransaction: iter next: %w", err)
	}
	return r.ToTransaction()
}

func createdAtParam(tx domain.Transaction) bigquery.NullTimestamp {
	if tx.CreatedAt.IsZero() {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: tx.CreatedAt, Valid: true}
}
