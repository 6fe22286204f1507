package bizfile

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Owner is a registered agent or principal pulled from a registry record.
type Owner struct {
	Name  string
	City  string
	State string
}

// Entity is one business search row.
type Entity struct {
	Name   string
	Status string
	ID     string
	Raw    json.RawMessage
}

// DecodeRows splits a search response into its rows. The payload may be a
// bare array, {"rows": [...]}, or {"rows": {"<id>": {...}, ...}}; object rows
// keep their document order.
func DecodeRows(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, eris.Wrap(err, "bizfile: decode rows")
		}
		return rows, nil
	}

	var env struct {
		Rows json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "bizfile: decode search response")
	}
	rows := bytes.TrimSpace(env.Rows)
	if len(rows) == 0 || string(rows) == "null" {
		return nil, nil
	}
	if rows[0] == '[' {
		var out []json.RawMessage
		if err := json.Unmarshal(rows, &out); err != nil {
			return nil, eris.Wrap(err, "bizfile: decode rows")
		}
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(rows))
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "bizfile: decode rows object")
	}
	var out []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, eris.Wrap(err, "bizfile: decode row key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, eris.Wrap(err, "bizfile: decode row")
		}
		out = append(out, raw)
	}
	return out, nil
}

func decodeObject(raw json.RawMessage) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil
	}
	return m
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func statusOf(m map[string]any) string {
	if st, ok := m["STATUS_TYPE"].(map[string]any); ok {
		if s := str(st["DESCR"]); s != "" {
			return s
		}
	}
	return str(m["STATUS"])
}

// NewEntity decodes one search row.
func NewEntity(raw json.RawMessage) Entity {
	m := decodeObject(raw)
	return Entity{
		Name:   firstStr(m, "NAME", "SEARCH_FILTER_TYPE_DESCR"),
		Status: statusOf(m),
		ID:     firstStr(m, "ENTITY_ID", "ID", "id"),
		Raw:    raw,
	}
}

// Active reports whether the registry lists the entity as active.
func (e Entity) Active() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "active")
}

// PickEntity returns the index of the best row for name: an active exact
// (case-insensitive) name match, else the first active row, else row 0.
func PickEntity(entities []Entity, name string) int {
	want := strings.TrimSpace(name)
	for i, e := range entities {
		if strings.EqualFold(e.Name, want) && e.Active() {
			return i
		}
	}
	for i, e := range entities {
		if e.Active() {
			return i
		}
	}
	return 0
}

// ownerKeys are the registry sections that name a responsible person, in
// priority order.
var ownerKeys = []string{"AGEN", "AGENT", "PRINCIPAL", "OFFICER", "MEMBER", "MANAGER"}

// ExtractOwner finds the owner in a detail payload or search row. Well-known
// sections are checked first, then the whole document is scanned for an
// agent keyword followed by a name-shaped value.
func ExtractOwner(raw json.RawMessage) (Owner, bool) {
	m := decodeObject(raw)
	if m == nil {
		return Owner{}, false
	}
	for _, key := range ownerKeys {
		for _, item := range sectionItems(m[key]) {
			name := pickName(item)
			if name == "" {
				continue
			}
			o := Owner{Name: name, State: "CA"}
			addr, _ := item["ADDRESS"].(map[string]any)
			if city := firstStr(addr, "CITY"); city != "" {
				o.City = titleCase(city)
			} else if city := str(item["CITY"]); city != "" {
				o.City = titleCase(city)
			}
			if st := firstStr(addr, "STATE"); st != "" {
				o.State = strings.ToUpper(st)
			} else if st := str(item["STATE"]); st != "" {
				o.State = strings.ToUpper(st)
			}
			return o, true
		}
	}
	return deepScan(raw)
}

func sectionItems(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, it := range t {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func pickName(item map[string]any) string {
	for _, k := range []string{"NAME", "AGENT_NAME", "FULL_NAME"} {
		if v := str(item[k]); v != "" && LooksLikeName(v) {
			return titleCase(v)
		}
	}
	first, last := str(item["FIRST_NAME"]), str(item["LAST_NAME"])
	if first != "" || last != "" {
		full := strings.TrimSpace(first + " " + last)
		if LooksLikeName(full) {
			return titleCase(full)
		}
	}
	return ""
}

var agentKeywords = []string{"agent", "registered", "principal", "officer", "member", "manager"}

func hasAgentKeyword(s string) bool {
	l := strings.ToLower(s)
	for _, kw := range agentKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

type token struct {
	text  string
	isKey bool
}

// flatten walks the JSON document in order and returns every object key and
// scalar value as text.
func flatten(raw json.RawMessage) []token {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	// Track whether the next string inside each open object is a key.
	type frame struct {
		object    bool
		expectKey bool
	}
	var stack []frame
	var out []token

	afterValue := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].expectKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{':
				if n := len(stack); n > 0 && stack[n-1].object {
					stack[n-1].expectKey = false
				}
				stack = append(stack, frame{object: true, expectKey: true})
			case '[':
				if n := len(stack); n > 0 && stack[n-1].object {
					stack[n-1].expectKey = false
				}
				stack = append(stack, frame{})
			case '}', ']':
				stack = stack[:len(stack)-1]
				afterValue()
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectKey {
				out = append(out, token{text: t, isKey: true})
				stack[n-1].expectKey = false
				continue
			}
			out = append(out, token{text: strings.TrimSpace(t)})
			afterValue()
		default:
			if n, ok := t.(json.Number); ok {
				out = append(out, token{text: n.String()})
			}
			afterValue()
		}
	}
}

const (
	nameWindow = 15
	cityWindow = 8
)

func deepScan(raw json.RawMessage) (Owner, bool) {
	toks := flatten(raw)
	for i, t := range toks {
		if !hasAgentKeyword(t.text) {
			continue
		}
		for j := i + 1; j < len(toks) && j < i+nameWindow; j++ {
			cand := toks[j]
			if cand.isKey || hasAgentKeyword(cand.text) || !LooksLikeName(cand.text) {
				continue
			}
			o := Owner{Name: titleCase(cand.text), State: "CA"}
			for k := j + 1; k < len(toks) && k < j+cityWindow; k++ {
				if toks[k].isKey {
					continue
				}
				if city, st, ok := ParseCityState(toks[k].text); ok {
					o.City, o.State = city, st
					break
				}
			}
			return o, true
		}
	}
	return Owner{}, false
}

var stopWords = map[string]bool{
	"true": true, "false": true, "null": true, "none": true,
	"ca": true, "llc": true, "inc": true, "corp": true, "ltd": true, "co": true,
	"the": true, "and": true,
	"agent": true, "registered": true, "authorized": true, "employee": true,
	"principal": true, "officer": true, "member": true, "manager": true,
	"active": true, "inactive": true, "suspended": true, "dissolved": true,
	"individual": true, "corporation": true,
}

// LooksLikeName reports whether s is shaped like a person's name: 3-60
// characters, 1-5 words, no digits, not a stop word, and at least one purely
// alphabetic word.
func LooksLikeName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 3 || len(s) > 60 {
		return false
	}
	words := strings.Fields(s)
	if len(words) < 1 || len(words) > 5 {
		return false
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return false
		}
	}
	if stopWords[strings.ToLower(s)] {
		return false
	}
	for _, w := range words {
		w = strings.NewReplacer(".", "", ",", "").Replace(w)
		if w != "" && strings.IndexFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }) < 0 {
			return true
		}
	}
	return false
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true,
	"IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true,
	"NV": true, "NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "PR": true, "RI": true, "SC": true,
	"SD": true, "TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true,
	"WV": true, "WI": true, "WY": true,
}

var cityStateRe = regexp.MustCompile(`([A-Za-z][A-Za-z.' -]*?)\s*,\s*([A-Z]{2})(?:\s+\d{5}(?:-\d{4})?)?\s*$`)

// ParseCityState recognizes a trailing "CITY, ST [ZIP]" such as
// "2108 N ST STE C, SACRAMENTO, CA 95816". The city is title-cased.
func ParseCityState(line string) (city, state string, ok bool) {
	m := cityStateRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil || !usStates[m[2]] {
		return "", "", false
	}
	city = strings.TrimSpace(m[1])
	if city == "" {
		return "", "", false
	}
	return titleCase(city), m[2], true
}

// titleCase builds a Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(s)))
}
