package handlers

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/format"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

const (
	exportTypeTransactions = "transactions"
	exportTypeDaily        = "daily"
)

// ExportCSV выгружает транзакции за период в CSV: построчно или итогами по дням.
func (h *TransactionHandler) ExportCSV(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	requested, err := parseOptionalUUIDQuery(c, "clientId")
	if err != nil {
		return badRequest(c, "invalid clientId")
	}
	clientID, err := clientScope(principal, requested)
	if err != nil {
		return forbidden(c)
	}

	exportType := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
	if exportType == "" {
		exportType = exportTypeTransactions
	}

	transactions, err := h.Transactions.ListAll(c.Request().Context(), repository.TransactionFilter{
		ClientID: clientID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return serverError(c, err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	switch exportType {
	case exportTypeTransactions:
		if err := writeTransactionsCSV(writer, transactions); err != nil {
			return serverError(c, err)
		}
	case exportTypeDaily:
		if err := writeDailyTotalsCSV(writer, transactions); err != nil {
			return serverError(c, err)
		}
	default:
		return badRequest(c, "invalid export type")
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return serverError(c, err)
	}

	filename := "transactions-" + exportType
	if from != nil {
		filename += "-" + formatDate(*from)
	}
	if to != nil {
		filename += "-" + formatDate(*to)
	}
	filename += ".csv"

	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func writeTransactionsCSV(writer *csv.Writer, transactions []models.DailyTransaction) error {
	header := []string{
		"transaction_id",
		"date",
		"client_id",
		"client_name",
		"category",
		"type",
		"description",
		"amount",
		"amount_formatted",
		"remaining_balance_after_transaction",
		"created_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tx := range transactions {
		category := ""
		if tx.Category != nil {
			category = tx.Category.Name
		}
		remaining := ""
		if tx.RemainingBalanceAfterTransaction != nil {
			remaining = money(*tx.RemainingBalanceAfterTransaction).StringFixed(2)
		}

		record := []string{
			tx.ID.String(),
			formatDate(tx.Date),
			tx.ClientID.String(),
			tx.ClientName,
			category,
			string(tx.Type),
			tx.Description,
			tx.Amount.StringFixed(2),
			format.Currency(tx.Amount),
			remaining,
			tx.CreatedAt.Format(timeLayout),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func writeDailyTotalsCSV(writer *csv.Writer, transactions []models.DailyTransaction) error {
	header := []string{"date", "income", "expense", "balance", "balance_formatted", "count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	groups, err := budget.Aggregate(transactions, budget.GroupByDate)
	if err != nil {
		return err
	}

	for _, key := range budget.SortedKeys(groups) {
		totals := groups[key]
		record := []string{
			key,
			totals.Income.StringFixed(2),
			totals.Expense.StringFixed(2),
			totals.Balance().StringFixed(2),
			format.Currency(totals.Balance()),
			strconv.Itoa(totals.Count),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}
