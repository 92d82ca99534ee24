package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	pkgbigquery "github.com/veridia-labs/veridia-backend/pkg/bigquery"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

// BigQueryStore keeps report records in the analytics warehouse. Creates go
// through the streaming inserter; updates and the conditional transitions run
// as DML so the at-most-once guarantee rides on NumDMLAffectedRows.
type BigQueryStore struct {
	client *pkgbigquery.Client
}

func NewBigQueryStore(client *pkgbigquery.Client) (*BigQueryStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bigquery client required")
	}
	return &BigQueryStore{client: client}, nil
}

type reportRow struct {
	ReportID        string                 `bigquery:"report_id"`
	OwnerEmail      string                 `bigquery:"owner_email"`
	OwnerName       string                 `bigquery:"owner_name"`
	DomainSubject   string                 `bigquery:"domain_subject"`
	SelectedModules string                 `bigquery:"selected_modules"`
	Status          string                 `bigquery:"status"`
	RepairStatus    string                 `bigquery:"repair_status"`
	BasicResult     bigquery.NullString    `bigquery:"basic_result"`
	FullResult      bigquery.NullString    `bigquery:"full_result"`
	PaidAt          bigquery.NullTimestamp `bigquery:"paid_at"`
	StripeSessionID bigquery.NullString    `bigquery:"stripe_session_id"`
	LastEventID     bigquery.NullString    `bigquery:"last_event_id"`
	Sent            bool                   `bigquery:"sent"`
	SentAt          bigquery.NullTimestamp `bigquery:"sent_at"`
	CreatedAt       time.Time              `bigquery:"created_at"`
	UpdatedAt       time.Time              `bigquery:"updated_at"`
}

func (s *BigQueryStore) Create(ctx context.Context, report *Report) error {
	if report == nil || report.ReportID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now

	row, err := encodeRow(report)
	if err != nil {
		return err
	}
	if err := s.client.InsertRows(ctx, s.client.ReportsTable(), []any{row}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert report row")
	}
	return nil
}

func (s *BigQueryStore) Get(ctx context.Context, id string) (*Report, error) {
	sql := fmt.Sprintf(
		"SELECT * FROM `%s.%s` WHERE report_id = @report_id LIMIT 1",
		s.client.Dataset(), s.client.ReportsTable(),
	)
	it, err := s.client.Query(ctx, sql, []bigquery.QueryParameter{
		{Name: "report_id", Value: id},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query report")
	}

	var row reportRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read report row")
	}
	return decodeRow(row)
}

func (s *BigQueryStore) Update(ctx context.Context, id string, patch Patch) error {
	assignments := ""
	params := []bigquery.QueryParameter{{Name: "report_id", Value: id}}
	if patch.Sent != nil {
		assignments += "sent = @sent, "
		params = append(params, bigquery.QueryParameter{Name: "sent", Value: *patch.Sent})
	}
	if patch.SentAt != nil {
		assignments += "sent_at = @sent_at, "
		params = append(params, bigquery.QueryParameter{Name: "sent_at", Value: patch.SentAt.UTC()})
	}
	if assignments == "" {
		return nil
	}
	sql := fmt.Sprintf(
		"UPDATE `%s.%s` SET %supdated_at = CURRENT_TIMESTAMP() WHERE report_id = @report_id",
		s.client.Dataset(), s.client.ReportsTable(), assignments,
	)
	if _, err := s.client.Exec(ctx, sql, params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report row")
	}
	return nil
}

func (s *BigQueryStore) Unlock(ctx context.Context, id string, fields UnlockFields) (bool, error) {
	fullResult, err := json.Marshal(fields.FullResult)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode full result")
	}
	sql := fmt.Sprintf(
		"UPDATE `%s.%s` SET status = @next_status, full_result = @full_result, paid_at = @paid_at, "+
			"stripe_session_id = @session_id, last_event_id = @event_id, updated_at = CURRENT_TIMESTAMP() "+
			"WHERE report_id = @report_id AND status = @prior_status",
		s.client.Dataset(), s.client.ReportsTable(),
	)
	affected, err := s.client.Exec(ctx, sql, []bigquery.QueryParameter{
		{Name: "next_status", Value: string(StatusUnlocked)},
		{Name: "full_result", Value: string(fullResult)},
		{Name: "paid_at", Value: fields.PaidAt.UTC()},
		{Name: "session_id", Value: fields.StripeSessionID},
		{Name: "event_id", Value: fields.LastEventID},
		{Name: "report_id", Value: id},
		{Name: "prior_status", Value: string(StatusLocked)},
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlock report row")
	}
	if affected > 0 {
		return true, nil
	}
	return false, s.existsOrNotFound(ctx, id)
}

func (s *BigQueryStore) ActivateRepair(ctx context.Context, id string, fields RepairFields) (bool, error) {
	sql := fmt.Sprintf(
		"UPDATE `%s.%s` SET repair_status = @next_repair, paid_at = @paid_at, "+
			"stripe_session_id = @session_id, last_event_id = @event_id, updated_at = CURRENT_TIMESTAMP() "+
			"WHERE report_id = @report_id AND status = @unlocked AND repair_status = @prior_repair",
		s.client.Dataset(), s.client.ReportsTable(),
	)
	affected, err := s.client.Exec(ctx, sql, []bigquery.QueryParameter{
		{Name: "next_repair", Value: string(RepairActive)},
		{Name: "paid_at", Value: fields.PaidAt.UTC()},
		{Name: "session_id", Value: fields.StripeSessionID},
		{Name: "event_id", Value: fields.LastEventID},
		{Name: "report_id", Value: id},
		{Name: "unlocked", Value: string(StatusUnlocked)},
		{Name: "prior_repair", Value: string(RepairLocked)},
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate repair row")
	}
	if affected > 0 {
		return true, nil
	}
	return false, s.existsOrNotFound(ctx, id)
}

func (s *BigQueryStore) existsOrNotFound(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return nil
}

func encodeRow(report *Report) (*reportRow, error) {
	modules, err := json.Marshal(report.SelectedModules)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode selected modules")
	}
	row := &reportRow{
		ReportID:        report.ReportID,
		OwnerEmail:      report.OwnerEmail,
		OwnerName:       report.OwnerName,
		DomainSubject:   report.DomainSubject,
		SelectedModules: string(modules),
		Status:          string(report.Status),
		RepairStatus:    string(report.RepairStatus),
		Sent:            report.Sent,
		CreatedAt:       report.CreatedAt,
		UpdatedAt:       report.UpdatedAt,
	}
	if report.BasicResult != nil {
		data, err := json.Marshal(report.BasicResult)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode basic result")
		}
		row.BasicResult = bigquery.NullString{StringVal: string(data), Valid: true}
	}
	if report.FullResult != nil {
		data, err := json.Marshal(report.FullResult)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode full result")
		}
		row.FullResult = bigquery.NullString{StringVal: string(data), Valid: true}
	}
	return row, nil
}

func decodeRow(row reportRow) (*Report, error) {
	report := &Report{
		ReportID:      row.ReportID,
		OwnerEmail:    row.OwnerEmail,
		OwnerName:     row.OwnerName,
		DomainSubject: row.DomainSubject,
		Status:        Status(row.Status),
		RepairStatus:  RepairStatus(row.RepairStatus),
		Sent:          row.Sent,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.SelectedModules != "" {
		if err := json.Unmarshal([]byte(row.SelectedModules), &report.SelectedModules); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode selected modules")
		}
	}
	if row.BasicResult.Valid && row.BasicResult.StringVal != "" {
		if err := json.Unmarshal([]byte(row.BasicResult.StringVal), &report.BasicResult); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode basic result")
		}
	}
	if row.FullResult.Valid && row.FullResult.StringVal != "" {
		if err := json.Unmarshal([]byte(row.FullResult.StringVal), &report.FullResult); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode full result")
		}
	}
	if row.PaidAt.Valid {
		paidAt := row.PaidAt.Timestamp
		report.PaidAt = &paidAt
	}
	if row.SentAt.Valid {
		sentAt := row.SentAt.Timestamp
		report.SentAt = &sentAt
	}
	if row.StripeSessionID.Valid {
		report.StripeSessionID = row.StripeSessionID.StringVal
	}
	if row.LastEventID.Valid {
		report.LastEventID = row.LastEventID.StringVal
	}
	return report, nil
}
