package store

import (
	"fmt"
	"strconv"
	"strings"

	"trafficlens/internal/metrics"
)

// Dialect renders the parts of a query that differ between databases
type Dialect interface {
	Placeholder(n int) string
	// Like is the case-insensitive pattern match operator.
	Like() string
}

// SQLite binds with "?". Its LIKE already ignores ASCII case.
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }
func (SQLite) Like() string           { return "LIKE" }

// Postgres binds with "$n"
type Postgres struct{}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (Postgres) Like() string             { return "ILIKE" }

// columnExprs whitelists every column a metric or filter may touch. Event
// rows are aliased e, session rows s.
var columnExprs = map[string]string{
	"url_path":        "e.url_path",
	"url_query":       "e.url_query",
	"referrer_domain": "e.referrer_domain",
	"page_title":      "e.page_title",
	"hostname":        "e.hostname",
	"event_name":      "e.event_name",
	"tag":             "e.tag",
	"browser":         "s.browser",
	"os":              "s.os",
	"device":          "s.device",
	"screen":          "s.screen",
	"language":        "s.language",
	"country":         "s.country",
	"region":          "s.region",
	"city":            "s.city",
}

func columnExpr(column string) (string, error) {
	expr, ok := columnExprs[column]
	if !ok {
		return "", fmt.Errorf("%w: unknown column %q", metrics.ErrBadRequest, column)
	}
	return expr, nil
}

// Statement is a rendered query and its arguments
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// scope renders the website, date range and field filter conditions.
func (b *builder) scope(websiteID uint, filters metrics.Filters) ([]string, error) {
	conds := []string{
		"e.website_id = " + b.bind(int64(websiteID)),
	}
	if !filters.StartDate.IsZero() {
		conds = append(conds, "e.created_at >= "+b.bind(filters.StartDate))
	}
	if !filters.EndDate.IsZero() {
		conds = append(conds, "e.created_at <= "+b.bind(filters.EndDate))
	}

	for _, f := range filters.List() {
		expr, err := columnExpr(f.Column)
		if err != nil {
			return nil, err
		}
		switch f.Operator {
		case metrics.OpEquals:
			conds = append(conds, expr+" = "+b.bind(f.Value))
		case metrics.OpNotEquals:
			conds = append(conds, expr+" != "+b.bind(f.Value))
		case metrics.OpContains:
			conds = append(conds, expr+" "+b.dialect.Like()+" "+b.bind(likePattern(f.Value))+` ESCAPE '\'`)
		case metrics.OpDoesNotContain:
			conds = append(conds, expr+" NOT "+b.dialect.Like()+" "+b.bind(likePattern(f.Value))+` ESCAPE '\'`)
		default:
			return nil, fmt.Errorf("%w: unknown operator %q", metrics.ErrBadRequest, f.Operator)
		}
	}
	return conds, nil
}

func (b *builder) page(limit, offset int) string {
	var sb strings.Builder
	if limit > 0 {
		sb.WriteString(" LIMIT " + b.bind(limit))
		if offset > 0 {
			sb.WriteString(" OFFSET " + b.bind(offset))
		}
	}
	return sb.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

const fromEvents = " FROM website_events e LEFT JOIN sessions s ON s.id = e.session_id"

// SessionMetricsSQL counts distinct sessions per value of a session attribute.
func SessionMetricsSQL(d Dialect, websiteID uint, metricType string, filters metrics.Filters, limit, offset int) (Statement, error) {
	expr, err := columnExpr(metrics.Column(metricType))
	if err != nil {
		return Statement{}, err
	}

	b := &builder{dialect: d}
	conds, err := b.scope(websiteID, filters)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds, "e.event_type = "+b.bind(EventTypePageview))

	sql := "SELECT COALESCE(" + expr + ", '') AS x, COUNT(DISTINCT e.session_id) AS y" +
		fromEvents +
		" WHERE " + strings.Join(conds, " AND ") +
		" GROUP BY 1 ORDER BY y DESC, x ASC" +
		b.page(limit, offset)
	return Statement{SQL: sql, Args: b.args}, nil
}

// PageviewMetricsSQL counts rows per value of an event attribute. entry and
// exit count the first and last pageview of each session in the range.
func PageviewMetricsSQL(d Dialect, websiteID uint, metricType string, filters metrics.Filters, limit, offset int) (Statement, error) {
	expr, err := columnExpr(metrics.Column(metricType))
	if err != nil {
		return Statement{}, err
	}

	b := &builder{dialect: d}
	from := fromEvents
	if metricType == "entry" || metricType == "exit" {
		agg := "MIN"
		if metricType == "exit" {
			agg = "MAX"
		}
		inner := &builder{dialect: d}
		innerConds, err := inner.scope(websiteID, metrics.Filters{StartDate: filters.StartDate, EndDate: filters.EndDate})
		if err != nil {
			return Statement{}, err
		}
		innerConds = append(innerConds, "e.event_type = "+inner.bind(EventTypePageview))
		// the inner query binds first so its placeholders are numbered first
		b.args = inner.args
		from += " JOIN (SELECT e.session_id, " + agg + "(e.created_at) AS edge_at FROM website_events e WHERE " +
			strings.Join(innerConds, " AND ") +
			" GROUP BY e.session_id) edge ON edge.session_id = e.session_id AND edge.edge_at = e.created_at"
	}

	conds, err := b.scope(websiteID, filters)
	if err != nil {
		return Statement{}, err
	}

	switch metricType {
	case "event":
		conds = append(conds, "e.event_type = "+b.bind(EventTypeCustom))
	default:
		conds = append(conds, "e.event_type = "+b.bind(EventTypePageview))
	}
	switch metricType {
	case "referrer":
		conds = append(conds, "e.referrer_domain != ''", "e.referrer_domain != e.hostname")
	case "query", "tag", "title":
		conds = append(conds, expr+" != ''")
	}

	sql := "SELECT " + expr + " AS x, COUNT(*) AS y" +
		from +
		" WHERE " + strings.Join(conds, " AND ") +
		" GROUP BY 1 ORDER BY y DESC, x ASC" +
		b.page(limit, offset)
	return Statement{SQL: sql, Args: b.args}, nil
}

// ChannelRowsSQL groups visitors by referrer domain and query string,
// ignoring navigation within the site itself.
func ChannelRowsSQL(d Dialect, websiteID uint, filters metrics.Filters) (Statement, error) {
	b := &builder{dialect: d}
	conds, err := b.scope(websiteID, filters)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds,
		"e.event_type = "+b.bind(EventTypePageview),
		"(e.referrer_domain = '' OR e.referrer_domain != e.hostname)",
	)

	sql := "SELECT e.referrer_domain AS domain, e.url_query AS query, COUNT(DISTINCT e.session_id) AS visitors" +
		fromEvents +
		" WHERE " + strings.Join(conds, " AND ") +
		" GROUP BY 1, 2 ORDER BY visitors DESC"
	return Statement{SQL: sql, Args: b.args}, nil
}

// EventDataSQL selects the payload of every custom event in range, optionally
// restricted to one event name.
func EventDataSQL(d Dialect, websiteID uint, eventName string, filters metrics.Filters) (Statement, error) {
	b := &builder{dialect: d}
	conds, err := b.scope(websiteID, filters)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds, "e.event_type = "+b.bind(EventTypeCustom), "e.event_data IS NOT NULL")
	if eventName != "" {
		conds = append(conds, "e.event_name = "+b.bind(eventName))
	}

	sql := "SELECT e.event_name, e.event_data" +
		fromEvents +
		" WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY e.id"
	return Statement{SQL: sql, Args: b.args}, nil
}
