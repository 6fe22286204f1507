package model

import (
	"strconv"
	"strings"
)

// Column is a header name in a lead table.
type Column string

// Lead table columns in canonical order.
const (
	ColID           Column = "ID"
	ColBusinessName Column = "Business Name"
	ColCategory     Column = "Category"
	ColArea         Column = "Area"
	ColBizPhone     Column = "Biz Phone"
	ColWebsite      Column = "Website"
	ColBizAddress   Column = "Biz Address"
	ColOwnerName    Column = "Owner Name"
	ColOwnerCity    Column = "Owner City"
	ColOwnerState   Column = "Owner State"
	ColBestPhone    Column = "Best Phone"
	ColBestEmail    Column = "Best Email"
	ColStatus       Column = "Status"
	ColSMSSent      Column = "SMS Sent"
	ColEmailSent    Column = "Email Sent"
	ColDateAdded    Column = "Date Added"
	ColNotes        Column = "Notes"
	ColDripStep     Column = "Drip Step"
	ColNextContact  Column = "Next Contact"
)

// Columns lists every lead column in the order it appears in a new table.
var Columns = []Column{
	ColID, ColBusinessName, ColCategory, ColArea, ColBizPhone, ColWebsite,
	ColBizAddress, ColOwnerName, ColOwnerCity, ColOwnerState, ColBestPhone,
	ColBestEmail, ColStatus, ColSMSSent, ColEmailSent, ColDateAdded, ColNotes,
	ColDripStep, ColNextContact,
}

// Headers returns Columns as plain strings for a header row.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = string(c)
	}
	return out
}

// LeadStatus is the drip lifecycle state stored in the Status column.
type LeadStatus string

const (
	StatusSourced        LeadStatus = "sourced"
	StatusEnriched       LeadStatus = "enriched"
	StatusNoBizfile      LeadStatus = "no_bizfile"
	StatusTouch1Sent     LeadStatus = "touch1_sent"
	StatusOutreachFailed LeadStatus = "outreach_failed"
	StatusNoContact      LeadStatus = "no_contact"
	StatusTouch2Sent     LeadStatus = "touch2_sent"
	StatusTouch2Failed   LeadStatus = "touch2_failed"
	StatusNoEmail        LeadStatus = "no_email"
	StatusTouch3Failed   LeadStatus = "touch3_failed"
	StatusDripComplete   LeadStatus = "drip_complete"
	StatusUnsubscribed   LeadStatus = "unsubscribed"
)

// Terminal reports whether no further touches may be sent in this state.
func (s LeadStatus) Terminal() bool {
	switch s {
	case StatusDripComplete, StatusNoContact, StatusUnsubscribed:
		return true
	}
	return false
}

// Touch1Eligible reports whether a lead in this state is waiting for Touch 1.
func (s LeadStatus) Touch1Eligible() bool {
	switch s {
	case StatusSourced, StatusEnriched, StatusNoBizfile:
		return true
	}
	return false
}

// Send flag values for the SMS Sent and Email Sent columns.
const (
	FlagYes     = "YES"
	FlagNo      = "NO"
	FlagFailed  = "FAILED"
	FlagNoPhone = "NO PHONE"
	FlagNoEmail = "NO EMAIL"
)

// OwnerNotFound is written to Owner Name when the registry has no match.
const OwnerNotFound = "not found"

// DateLayout is the format of Date Added and Next Contact.
const DateLayout = "2006-01-02"

// Lead is one row of a lead table.
type Lead struct {
	// Row is the 1-based sheet row. Zero means not yet persisted.
	Row int `json:"row,omitempty"`

	ID           string     `json:"id"`
	BusinessName string     `json:"business_name"`
	Category     string     `json:"category"`
	Area         string     `json:"area"`
	BizPhone     string     `json:"biz_phone"`
	Website      string     `json:"website"`
	BizAddress   string     `json:"biz_address"`
	OwnerName    string     `json:"owner_name"`
	OwnerCity    string     `json:"owner_city"`
	OwnerState   string     `json:"owner_state"`
	BestPhone    string     `json:"best_phone"`
	BestEmail    string     `json:"best_email"`
	Status       LeadStatus `json:"status"`
	SMSSent      string     `json:"sms_sent"`
	EmailSent    string     `json:"email_sent"`
	DateAdded    string     `json:"date_added"`
	Notes        string     `json:"notes"`
	DripStep     int        `json:"drip_step"`
	NextContact  string     `json:"next_contact"`
}

// Get returns the cell value for a column.
func (l *Lead) Get(c Column) string {
	switch c {
	case ColID:
		return l.ID
	case ColBusinessName:
		return l.BusinessName
	case ColCategory:
		return l.Category
	case ColArea:
		return l.Area
	case ColBizPhone:
		return l.BizPhone
	case ColWebsite:
		return l.Website
	case ColBizAddress:
		return l.BizAddress
	case ColOwnerName:
		return l.OwnerName
	case ColOwnerCity:
		return l.OwnerCity
	case ColOwnerState:
		return l.OwnerState
	case ColBestPhone:
		return l.BestPhone
	case ColBestEmail:
		return l.BestEmail
	case ColStatus:
		return string(l.Status)
	case ColSMSSent:
		return l.SMSSent
	case ColEmailSent:
		return l.EmailSent
	case ColDateAdded:
		return l.DateAdded
	case ColNotes:
		return l.Notes
	case ColDripStep:
		return strconv.Itoa(l.DripStep)
	case ColNextContact:
		return l.NextContact
	}
	return ""
}

// Set assigns a cell value by column. Unknown columns are ignored.
func (l *Lead) Set(c Column, v string) {
	switch c {
	case ColID:
		l.ID = v
	case ColBusinessName:
		l.BusinessName = v
	case ColCategory:
		l.Category = v
	case ColArea:
		l.Area = v
	case ColBizPhone:
		l.BizPhone = v
	case ColWebsite:
		l.Website = v
	case ColBizAddress:
		l.BizAddress = v
	case ColOwnerName:
		l.OwnerName = v
	case ColOwnerCity:
		l.OwnerCity = v
	case ColOwnerState:
		l.OwnerState = v
	case ColBestPhone:
		l.BestPhone = v
	case ColBestEmail:
		l.BestEmail = v
	case ColStatus:
		l.Status = LeadStatus(v)
	case ColSMSSent:
		l.SMSSent = v
	case ColEmailSent:
		l.EmailSent = v
	case ColDateAdded:
		l.DateAdded = v
	case ColNotes:
		l.Notes = v
	case ColDripStep:
		l.DripStep = ParseDripStep(v)
	case ColNextContact:
		l.NextContact = v
	}
}

// Apply copies every change onto the lead.
func (l *Lead) Apply(ch Changes) {
	for c, v := range ch {
		l.Set(c, v)
	}
}

// Values renders the lead as a row in canonical column order.
func (l *Lead) Values() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = l.Get(c)
	}
	return out
}

// LeadFromRow builds a lead from a header row and one data row. Missing
// trailing cells are treated as empty.
func LeadFromRow(headers, row []string, rowNum int) Lead {
	l := Lead{Row: rowNum}
	for i, h := range headers {
		v := ""
		if i < len(row) {
			v = row[i]
		}
		l.Set(Column(strings.TrimSpace(h)), v)
	}
	return l
}

// ParseDripStep reads a Drip Step cell. Blank or malformed values are 0.
func ParseDripStep(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	if n > 3 {
		return 3
	}
	return n
}

// Changes is a set of cell writes for one row.
type Changes map[Column]string

// DedupKey normalizes a business name for sourcing dedup.
func DedupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
