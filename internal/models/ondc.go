package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DomainNTS10     = "ONDC:NTS10"
	ProtocolVersion = "2.0.0"
	DefaultTTL      = "P1D"
	CountryIndia    = "IND"
	CityAny         = "*"
)

// Settlement network actions.
const (
	ActionSettle   = "settle"
	ActionReport   = "report"
	ActionOnSettle = "on_settle"
	ActionOnReport = "on_report"
)

const (
	AckStatusACK  = "ACK"
	AckStatusNACK = "NACK"
)

// TimestampLayout is UTC with exactly three fractional digits.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp marshals as TimestampLayout. The network rejects RFC3339Nano's
// variable precision.
type Timestamp time.Time

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Millisecond))
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	*t = Timestamp(parsed.UTC())
	return nil
}

type Code struct {
	Code string `json:"code"`
}

type Location struct {
	Country Code `json:"country"`
	City    Code `json:"city"`
}

// DefaultLocation is India, any city.
func DefaultLocation() Location {
	return Location{Country: Code{Code: CountryIndia}, City: Code{Code: CityAny}}
}

// Context is the ONDC request context. Field order is the wire order.
type Context struct {
	Domain        string    `json:"domain"`
	Location      Location  `json:"location"`
	Version       string    `json:"version"`
	Action        string    `json:"action"`
	BapID         string    `json:"bap_id"`
	BapURI        string    `json:"bap_uri"`
	BppID         string    `json:"bpp_id"`
	BppURI        string    `json:"bpp_uri"`
	TransactionID string    `json:"transaction_id"`
	MessageID     string    `json:"message_id"`
	Timestamp     Timestamp `json:"timestamp"`
	TTL           string    `json:"ttl,omitempty"`
}

var validActions = map[string]bool{
	ActionSettle:   true,
	ActionReport:   true,
	ActionOnSettle: true,
	ActionOnReport: true,
}

// Validate validates the context
func (c *Context) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.Action == "" {
		return fmt.Errorf("action is required")
	}
	if !validActions[c.Action] {
		return fmt.Errorf("invalid action: %s", c.Action)
	}
	if c.BapID == "" {
		return fmt.Errorf("bap_id is required")
	}
	if c.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if c.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if c.TTL != "" {
		if _, err := ParseISODuration(c.TTL); err != nil {
			return fmt.Errorf("invalid ttl format: %s (expected ISO 8601 duration, e.g., P1D, PT30S)", c.TTL)
		}
	}
	return nil
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses the week, day and time components of an ISO 8601
// duration. Years and months have no fixed length and are rejected.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %q", s)
	}

	var total time.Duration
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration: %q", s)
		}
		if n > (math.MaxInt64-int64(total))/int64(unit) {
			return 0, fmt.Errorf("ISO 8601 duration out of range: %q", s)
		}
		total += time.Duration(n) * unit
	}
	if m[5] != "" {
		secs, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration: %q", s)
		}
		// float64(MaxInt64) rounds up to 2^63, so >= keeps the conversion in range.
		if secs*float64(time.Second) >= float64(math.MaxInt64-int64(total)) {
			return 0, fmt.Errorf("ISO 8601 duration out of range: %q", s)
		}
		total += time.Duration(secs * float64(time.Second))
	}
	return total, nil
}

// Request is an outbound envelope. Message is one of SettleMessage or
// ReportMessage.
type Request struct {
	Context Context     `json:"context"`
	Message interface{} `json:"message"`
}

// InboundRequest keeps the message undecoded until the action is known.
type InboundRequest struct {
	Context Context         `json:"context"`
	Message json.RawMessage `json:"message"`
}

// ErrorInfo is the error block of an ACK/NACK reply.
type ErrorInfo struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// UnmarshalJSON accepts a numeric code and an object message
// ({"en": "..."}) in addition to the string forms.
func (e *ErrorInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
		Path    string          `json:"path"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Type = raw.Type
	e.Path = raw.Path
	e.Code = looseString(raw.Code)
	e.Message = looseMessage(raw.Message)
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func looseMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if en, ok := obj["en"].(string); ok {
			return en
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// AckResponse is the synchronous reply to settle and report.
type AckResponse struct {
	Message AckMessage `json:"message"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type AckMessage struct {
	Ack AckStatus `json:"ack"`
}

type AckStatus struct {
	Status string `json:"status"` // "ACK" or "NACK"
}

func NewACK() AckResponse {
	return AckResponse{Message: AckMessage{Ack: AckStatus{Status: AckStatusACK}}}
}

func NewNACK(errType, code, message string) AckResponse {
	return AckResponse{
		Message: AckMessage{Ack: AckStatus{Status: AckStatusNACK}},
		Error:   &ErrorInfo{Type: errType, Code: code, Message: message},
	}
}

func (r *AckResponse) IsACK() bool {
	return r.Message.Ack.Status == AckStatusACK
}

// MarshalMinified encodes v without insignificant whitespace, without HTML
// escaping and without a trailing newline. These are the bytes that get
// signed and sent.
func MarshalMinified(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
