package report

import (
	"net/url"
	"strconv"

	"github.com/erp/chemstock/internal/domain/shared"
)

// UploadRequest is a daily drilling report to be turned into consumption
type UploadRequest struct {
	ProjectID  int64       `validate:"required"`
	FacilityID int64       `validate:"required"`
	Date       shared.Date `validate:"required"`
	FileName   string      `validate:"required"`
	Data       []byte      `validate:"required"`
}

// UploadResult describes an accepted upload
type UploadResult struct {
	Message    string `json:"message,omitempty"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

// Period is an inclusive date range
type Period struct {
	Start shared.Date `validate:"required"`
	End   shared.Date `validate:"required"`
}

func (p Period) set(q url.Values) {
	q.Set("start_date", p.Start.String())
	q.Set("end_date", p.End.String())
}

// AnalyticsRequest selects projects for the plan-vs-actual report. With a
// single project and no period, the project's own dates are used.
type AnalyticsRequest struct {
	ProjectIDs []int64 `validate:"min=1"`
	Start      shared.Date
	End        shared.Date
}

func (r AnalyticsRequest) values() url.Values {
	q := url.Values{}
	for _, id := range r.ProjectIDs {
		q.Add("project_ids[]", strconv.FormatInt(id, 10))
	}
	Period{Start: r.Start, End: r.End}.set(q)
	return q
}

// ConsumptionRequest selects the facilities whose outgoing stock is summed
type ConsumptionRequest struct {
	Facilities []int64 `validate:"min=1"`
	Period     Period
}

func idValues(q url.Values, key string, ids []int64) {
	for _, id := range ids {
		q.Add(key, strconv.FormatInt(id, 10))
	}
}

// reportDateTime is the time stamped on operations created from a daily report
const reportDateTime = "T23:50:00"
