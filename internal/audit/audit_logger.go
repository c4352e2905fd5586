package audit

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Event is one line of the audit trail.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	UserID        string    `json:"user_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	PostingID     int64     `json:"posting_id,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// AuditLogger writes ledger activity as JSON lines prefixed with AUDIT:.
type AuditLogger struct {
	logger *log.Logger
	now    func() time.Time
}

func NewAuditLogger() *AuditLogger {
	return NewAuditLoggerTo(os.Stderr)
}

// NewAuditLoggerTo writes the trail to w instead of stderr.
func NewAuditLoggerTo(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: log.New(w, "", log.LstdFlags),
		now:    time.Now,
	}
}

// LogLedgerEvent records a successfully applied ledger event.
func (a *AuditLogger) LogLedgerEvent(userID, kind string, transactionID, postingID int64) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     kind,
		UserID:        userID,
		TransactionID: transactionID,
		PostingID:     postingID,
		Status:        "SUCCESS",
	})
}

// LogRejected records an event refused because of user input.
func (a *AuditLogger) LogRejected(userID, kind, reason string) {
	a.log(Event{
		Timestamp: a.now(),
		EventType: kind,
		UserID:    userID,
		Status:    "REJECTED",
		Details:   map[string]string{"reason": reason},
	})
}

// LogError records an internal failure under its reference id.
func (a *AuditLogger) LogError(userID, ref string, err error) {
	a.log(Event{
		Timestamp: a.now(),
		EventType: "ERROR",
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error(), "ref": ref},
	})
}

func (a *AuditLogger) log(event Event) {
	data, _ := json.Marshal(event)
	a.logger.Printf("AUDIT: %s", string(data))
}
