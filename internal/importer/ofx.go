package importer

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/model"
)

// DefaultDescription is used when a transaction block carries none of the
// description candidate tags.
const DefaultDescription = "Bank transaction"

// UnknownInstitution is reported when the institution cannot be detected.
const UnknownInstitution = "Unknown institution"

const ofxDateLayout = "20060102"

// Description candidates, in priority order.
var descriptionTags = []string{"MEMO", "NAME", "PAYEEID", "CHECKNUM"}

var (
	blockRe = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)
	tagRes  = map[string]*regexp.Regexp{}
)

func init() {
	tags := append([]string{
		"ACCTID", "BANKID", "BALAMT", "DTEND", "DTSERVER", "ORG",
		"TRNTYPE", "DTPOSTED", "TRNAMT", "FITID",
	}, descriptionTags...)
	for _, tag := range tags {
		tagRes[tag] = regexp.MustCompile(`(?i)<` + tag + `>([^<]+)`)
	}
}

// OFXParser parses OFX 1.x (SGML) bank statement exports.
type OFXParser struct {
	Logger *logging.Logger
	// Now supplies the fallback statement date. Defaults to time.Now.
	Now func() time.Time
}

// NewOFXParser creates an OFXParser that logs skipped blocks to logger.
func NewOFXParser(logger *logging.Logger) *OFXParser {
	return &OFXParser{Logger: logger}
}

// Format returns the parser name.
func (p *OFXParser) Format() string { return "ofx" }

// Accepts reports whether raw looks like an OFX document.
func (p *OFXParser) Accepts(raw string) bool { return IsValidFormat(raw) }

// IsValidFormat is a cheap structural pre-check: the text must carry an OFX
// header marker and at least one statement or transaction marker.
func IsValidFormat(raw string) bool {
	hasHeader := strings.Contains(raw, "OFXHEADER") || strings.Contains(raw, "<OFX>")
	hasBlocks := strings.Contains(raw, "<STMTRS>") || strings.Contains(raw, "<STMTTRN>")
	return hasHeader && hasBlocks
}

// DetectInstitution names the bank behind a statement.
func DetectInstitution(raw string) string {
	if org := tagValue(raw, "ORG"); org != "" {
		return org
	}
	if strings.Contains(strings.ToUpper(raw), "BRADESCO") || strings.TrimLeft(tagValue(raw, "BANKID"), "0") == "237" {
		return "Bradesco"
	}
	return UnknownInstitution
}

// Parse reads an OFX document and returns the normalized statement.
func (p *OFXParser) Parse(r io.Reader) (*model.ParsedStatement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX: %w", err)
	}
	return p.ParseString(string(data))
}

// ParseString parses an in-memory OFX document.
func (p *OFXParser) ParseString(raw string) (*model.ParsedStatement, error) {
	content := strings.TrimSpace(strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(raw))
	if !IsValidFormat(content) {
		return nil, &FormatError{Format: p.Format(), Reason: "missing OFX header or transaction markers"}
	}
	log := logging.OrNop(p.Logger).Named("ofx")

	stmt := &model.ParsedStatement{
		InstitutionName: DetectInstitution(content),
		AccountID:       tagValue(content, "ACCTID"),
		StatementDate:   p.statementDate(content),
	}
	if stmt.AccountID == "" {
		stmt.AccountID = "N/A"
	}

	if s := tagValue(content, "BALAMT"); s != "" {
		bal, err := parseAmount(s)
		if err != nil {
			log.Warn("ignoring unparseable balance", zap.String("value", s))
		} else {
			stmt.Balance = bal
		}
	}

	for i, m := range blockRe.FindAllStringSubmatch(content, -1) {
		txn, err := parseBlock(m[1])
		if err != nil {
			log.Warn("skipping transaction block", zap.Int("block", i+1), zap.Error(err))
			continue
		}
		stmt.Transactions = append(stmt.Transactions, txn)
	}

	log.Debug("parsed statement",
		zap.String("account", stmt.AccountID),
		zap.String("institution", stmt.InstitutionName),
		zap.Int("transactions", len(stmt.Transactions)),
	)
	return stmt, nil
}

// statementDate prefers DTEND, then DTSERVER, then today.
func (p *OFXParser) statementDate(content string) time.Time {
	for _, tag := range []string{"DTEND", "DTSERVER"} {
		if v := tagValue(content, tag); v != "" {
			if d, err := ParseDate(v); err == nil {
				return d
			}
		}
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	y, m, d := now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseBlock(block string) (model.ParsedTransaction, error) {
	posted := tagValue(block, "DTPOSTED")
	rawAmount := tagValue(block, "TRNAMT")
	if posted == "" || rawAmount == "" {
		return model.ParsedTransaction{}, fmt.Errorf("missing DTPOSTED or TRNAMT")
	}

	date, err := ParseDate(posted)
	if err != nil {
		return model.ParsedTransaction{}, err
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return model.ParsedTransaction{}, fmt.Errorf("parsing amount %q: %w", rawAmount, err)
	}

	desc := DefaultDescription
	for _, tag := range descriptionTags {
		if v := tagValue(block, tag); v != "" {
			desc = v
			break
		}
	}

	polarity := model.PolarityCredit
	if amount.IsNegative() {
		polarity = model.PolarityDebit
	}

	return model.ParsedTransaction{
		Date:        date,
		Amount:      amount.Abs(),
		Description: CleanDescription(desc),
		Polarity:    polarity,
		ReferenceID: tagValue(block, "FITID"),
	}, nil
}

// ParseDate reads the leading YYYYMMDD of an OFX date-time value; any time
// of day or timezone suffix is ignored.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, fmt.Errorf("parsing date %q: too short", v)
	}
	d, err := time.Parse(ofxDateLayout, v[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", v, err)
	}
	return d, nil
}

// CleanDescription collapses whitespace and caps the length. Case is kept.
func CleanDescription(s string) string {
	return model.Truncate(model.CollapseSpace(s), model.MaxDescriptionLen)
}

// parseAmount accepts "-45.00" and the comma-decimal "-45,00" some banks emit.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

func tagValue(content, tag string) string {
	re, ok := tagRes[tag]
	if !ok {
		re = regexp.MustCompile(`(?i)<` + tag + `>([^<]+)`)
	}
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
